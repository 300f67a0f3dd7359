/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package apiserver exposes the service surface over HTTP. Handlers stay
// thin: bind, call the service, render. All policy lives below.
package apiserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/ccieblogger/netraven-sub003/pkg/service"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Handler handles HTTP requests against the service layer.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

type handleFunc func(c *gin.Context) (interface{}, error)

// handle is the common wrapper for HTTP requests.
func handle(c *gin.Context, fn handleFunc) {
	result, err := fn(c)
	if err != nil {
		klog.ErrorS(err, "handler error", "method", c.Request.Method, "path", c.Request.URL.Path)
		AbortWithApiError(c, err)
		return
	}
	c.JSON(200, result)
}

// Logger is the request logging middleware.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.V(2).Infof("%s %s %d %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// pagination reads limit/offset query parameters with bounds applied.
func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
