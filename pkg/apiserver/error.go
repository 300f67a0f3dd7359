/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"errors"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

// ApiError is the unified error response: HTTP code, stable error code and a
// message already safe to show.
type ApiError struct {
	HttpCode     int    `json:"-"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Error returns the error message string.
func (err *ApiError) Error() string {
	return err.ErrorMessage
}

// AbortWithApiError converts err into the standardized error format and
// aborts the request with a JSON error response.
func AbortWithApiError(c *gin.Context, err error) {
	_ = c.Error(err)
	rsp := convertToErrResponse(err)
	c.AbortWithStatusJSON(rsp.HttpCode, rsp)
}

// convertToErrResponse maps any error to an ApiError. Errors without a
// NetRaven code collapse to an internal error.
func convertToErrResponse(err error) ApiError {
	var result *ApiError
	if errors.As(err, &result) {
		return *result
	}
	var statusErr *commonerrors.StatusError
	if !errors.As(err, &statusErr) {
		statusErr = commonerrors.NewInternalError(err.Error())
	}
	return ApiError{
		HttpCode:     statusErr.Code,
		ErrorCode:    statusErr.Reason,
		ErrorMessage: statusErr.Error(),
	}
}
