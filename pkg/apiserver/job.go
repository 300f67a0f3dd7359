/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"fmt"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
	"github.com/ccieblogger/netraven-sub003/pkg/service"
)

// CreateJob handles job creation.
// POST /api/v1/jobs
func (h *Handler) CreateJob(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var spec service.JobSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
		}
		return h.svc.CreateJob(c.Request.Context(), &spec)
	})
}

// SetJobEnabled handles enabling or disabling a job.
// PUT /api/v1/jobs/:id/enabled
func (h *Handler) SetJobEnabled(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
		}
		return gin.H{}, h.svc.SetJobEnabled(c.Request.Context(), c.Param("id"), req.Enabled)
	})
}

// SubmitJob handles running a job immediately, outside any schedule.
// POST /api/v1/jobs/:id/submit
func (h *Handler) SubmitJob(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.svc.SubmitJob(c.Request.Context(), c.Param("id"))
	})
}

// CreateSchedule handles attaching a recurrence to a job.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var spec service.ScheduleSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
		}
		return h.svc.CreateSchedule(c.Request.Context(), &spec)
	})
}

// DeleteSchedule handles detaching a schedule.
// DELETE /api/v1/schedules/:id
func (h *Handler) DeleteSchedule(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.DeleteSchedule(c.Request.Context(), c.Param("id"))
	})
}

// ListRuns handles paging runs, optionally filtered by job and status.
// GET /api/v1/runs
func (h *Handler) ListRuns(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		limit, offset := pagination(c)
		runs, total, err := h.svc.ListRuns(c.Request.Context(),
			c.Query("job_id"), c.Query("status"), limit, offset)
		if err != nil {
			return nil, err
		}
		return gin.H{"items": runs, "total": total}, nil
	})
}

// GetRun handles getting a run with its per-device outcomes.
// GET /api/v1/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.svc.GetRun(c.Request.Context(), c.Param("id"))
	})
}

// CancelRun handles requesting cancellation of a run.
// POST /api/v1/runs/:id/cancel
func (h *Handler) CancelRun(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.CancelRun(c.Request.Context(), c.Param("id"))
	})
}
