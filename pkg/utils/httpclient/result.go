/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import (
	"io"
	"net/http"
)

// Result carries the drained response body together with the status code so
// callers never deal with half-read bodies or forgotten closes.
type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func newResult(resp *http.Response) (*Result, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header,
	}, nil
}

// IsSuccess reports whether the response carries a 2xx status.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
