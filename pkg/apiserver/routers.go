/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"github.com/gin-gonic/gin"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

const routerRootPath = "/api/v1/"

// InitHttpHandlers creates the Gin engine and registers all API routes.
func InitHttpHandlers(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(Logger(), gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		AbortWithApiError(c, commonerrors.NewNotFoundWithMessage(c.Request.RequestURI+" not found"))
	})
	if commonconfig.IsHealthCheckEnabled() {
		engine.GET("/healthz", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})
	}
	initRouters(engine, h)
	return engine
}

func initRouters(e *gin.Engine, h *Handler) {
	group := e.Group(routerRootPath)
	{
		// Device inventory
		group.POST("devices", h.CreateDevice)
		group.GET("devices", h.ListDevices)
		group.GET("devices/:id", h.GetDevice)
		group.DELETE("devices/:id", h.DeleteDevice)
		group.GET("devices/:id/snapshots", h.ListSnapshots)

		// Tags
		group.POST("tags", h.CreateTag)
		group.GET("tags", h.ListTags)
		group.DELETE("tags/:id", h.DeleteTag)
		group.GET("tags/:id/credentials", h.SmartSelectCredentials)
		group.POST("tags/:id/credentials/optimize", h.OptimizeCredentialPriorities)

		// Credentials and the vault
		group.POST("credentials", h.CreateCredential)
		group.POST("credentials/:id/tags/:tagId", h.BindCredential)
		group.DELETE("credentials/:id", h.DeleteCredential)
		group.POST("vault/rotate", h.RotateVault)

		// Jobs and schedules
		group.POST("jobs", h.CreateJob)
		group.PUT("jobs/:id/enabled", h.SetJobEnabled)
		group.POST("jobs/:id/submit", h.SubmitJob)
		group.POST("schedules", h.CreateSchedule)
		group.DELETE("schedules/:id", h.DeleteSchedule)

		// Runs
		group.GET("runs", h.ListRuns)
		group.GET("runs/:id", h.GetRun)
		group.POST("runs/:id/cancel", h.CancelRun)

		// Snapshots and logs
		group.GET("snapshots/diff", h.DiffSnapshots)
		group.GET("snapshots/:hash", h.GetSnapshot)
		group.GET("logs", h.ListLogs)

		// Queue administration
		group.GET("queue", h.GetQueueStatus)
		group.POST("queue/dead/:id/redrive", h.RedriveDeadLetter)
	}
}
