/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"github.com/gin-gonic/gin"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

// ListSnapshots handles listing a device's captures, newest first.
// GET /api/v1/devices/:id/snapshots
func (h *Handler) ListSnapshots(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		limit, offset := pagination(c)
		return h.svc.ListSnapshots(c.Request.Context(), c.Param("id"), limit, offset)
	})
}

// GetSnapshot handles fetching one stored configuration body.
// GET /api/v1/snapshots/:hash
func (h *Handler) GetSnapshot(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		content, err := h.svc.GetSnapshot(c.Request.Context(), c.Param("hash"))
		if err != nil {
			return nil, err
		}
		return gin.H{"contentHash": c.Param("hash"), "content": content}, nil
	})
}

// DiffSnapshots handles comparing two captures of one device.
// GET /api/v1/snapshots/diff?device_id=<id>&from=<hash>&to=<hash>
func (h *Handler) DiffSnapshots(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		deviceId, from, to := c.Query("device_id"), c.Query("from"), c.Query("to")
		if deviceId == "" {
			return nil, commonerrors.NewBadRequest("device_id is required")
		}
		if from == "" || to == "" {
			return nil, commonerrors.NewBadRequest("from and to hashes are required")
		}
		return h.svc.DiffSnapshots(c.Request.Context(), deviceId, from, to)
	})
}

// ListLogs handles paging log entries with filters.
// GET /api/v1/logs
func (h *Handler) ListLogs(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		limit, offset := pagination(c)
		return h.svc.ListLogs(c.Request.Context(),
			c.Query("run_id"), c.Query("device_id"), c.Query("source"), c.Query("level"),
			limit, offset)
	})
}

// GetQueueStatus handles reporting broker depths and parked runs.
// GET /api/v1/queue
func (h *Handler) GetQueueStatus(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.svc.GetQueueStatus(c.Request.Context())
	})
}

// RedriveDeadLetter handles returning a parked run to its pending queue.
// POST /api/v1/queue/dead/:id/redrive
func (h *Handler) RedriveDeadLetter(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.RedriveDeadLetter(c.Request.Context(), c.Param("id"))
	})
}
