/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/assert"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

func TestConvertToErrResponse(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		errorCode string
		httpCode  int
	}{
		{
			"fmt.error",
			fmt.Errorf("test"),
			commonerrors.InternalError,
			http.StatusInternalServerError,
		},
		{
			"bad request",
			commonerrors.NewBadRequest("test"),
			commonerrors.BadRequest,
			http.StatusBadRequest,
		},
		{
			"not found",
			commonerrors.NewNotFound("Device", "dev-1"),
			commonerrors.DeviceNotFound,
			http.StatusNotFound,
		},
		{
			"terminal run",
			commonerrors.NewTerminal("run-1"),
			commonerrors.RunTerminal,
			http.StatusConflict,
		},
		{
			"no devices",
			commonerrors.NewNoDevices("backup-all"),
			commonerrors.NoDevices,
			http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp := convertToErrResponse(tt.err)
			assert.Equal(t, rsp.ErrorCode, tt.errorCode)
			assert.Equal(t, rsp.HttpCode, tt.httpCode)
		})
	}
}

func TestAbortWithApiError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/devices/dev-1", nil)

	AbortWithApiError(c, commonerrors.NewNotFound("Device", "dev-1"))

	assert.Equal(t, recorder.Code, http.StatusNotFound)
	var rsp ApiError
	assert.NilError(t, json.Unmarshal(recorder.Body.Bytes(), &rsp))
	assert.Equal(t, rsp.ErrorCode, commonerrors.DeviceNotFound)
	assert.Assert(t, rsp.ErrorMessage != "")
}

func TestNoRouteReturnsApiError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		AbortWithApiError(c, commonerrors.NewNotFoundWithMessage(c.Request.RequestURI+" not found"))
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, recorder.Code, http.StatusNotFound)
}

func TestPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// gin caches the parsed query on the context, so each request needs a
	// fresh context
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	limit, offset := pagination(c)
	assert.Equal(t, limit, defaultPageSize)
	assert.Equal(t, offset, 0)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=9999&offset=-2", nil)
	limit, offset = pagination(c)
	assert.Equal(t, limit, maxPageSize)
	assert.Equal(t, offset, 0)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=10&offset=20", nil)
	limit, offset = pagination(c)
	assert.Equal(t, limit, 10)
	assert.Equal(t, offset, 20)
}
