/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	req, err := BuildRequest("http://10.0.0.1/restconf/data", http.MethodPost, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	req, err = BuildRequest("http://10.0.0.1/", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), req.ContentLength)
}

func TestBuildRequestInvalidMethod(t *testing.T) {
	_, err := BuildRequest("http://10.0.0.1/", "GET METHOD", nil)
	assert.Error(t, err)
}

func TestDoDrainsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Device", "r1")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hostname r1"))
	}))
	defer server.Close()

	req, err := BuildRequest(server.URL, http.MethodGet, nil)
	require.NoError(t, err)
	result, err := NewClient().Do(req)
	require.NoError(t, err)

	assert.True(t, result.IsSuccess())
	assert.Equal(t, "hostname r1", string(result.Body))
	assert.Equal(t, "r1", result.Header.Get("X-Device"))
}

func TestResultIsSuccess(t *testing.T) {
	assert.True(t, (&Result{StatusCode: 204}).IsSuccess())
	assert.False(t, (&Result{StatusCode: 301}).IsSuccess())
	assert.False(t, (&Result{StatusCode: 500}).IsSuccess())
}
