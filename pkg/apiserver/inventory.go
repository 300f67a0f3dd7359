/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiserver

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
	"github.com/ccieblogger/netraven-sub003/pkg/service"
)

// CreateDevice handles device registration.
// POST /api/v1/devices
func (h *Handler) CreateDevice(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var spec service.DeviceSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
		}
		return h.svc.CreateDevice(c.Request.Context(), &spec)
	})
}

// ListDevices handles listing the device inventory.
// GET /api/v1/devices
func (h *Handler) ListDevices(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		limit, offset := pagination(c)
		devices, total, err := h.svc.ListDevices(c.Request.Context(), limit, offset)
		if err != nil {
			return nil, err
		}
		return gin.H{"items": devices, "total": total}, nil
	})
}

// GetDevice handles getting a single device.
// GET /api/v1/devices/:id
func (h *Handler) GetDevice(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.svc.GetDevice(c.Request.Context(), c.Param("id"))
	})
}

// DeleteDevice handles removing a device.
// DELETE /api/v1/devices/:id
func (h *Handler) DeleteDevice(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.DeleteDevice(c.Request.Context(), c.Param("id"))
	})
}

// CreateTag handles tag creation.
// POST /api/v1/tags
func (h *Handler) CreateTag(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var req struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
		}
		return h.svc.CreateTag(c.Request.Context(), req.Name, req.Type)
	})
}

// ListTags handles listing all tags.
// GET /api/v1/tags
func (h *Handler) ListTags(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return h.svc.ListTags(c.Request.Context())
	})
}

// DeleteTag handles removing a tag and its bindings.
// DELETE /api/v1/tags/:id
func (h *Handler) DeleteTag(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.DeleteTag(c.Request.Context(), c.Param("id"))
	})
}

// CreateCredential handles credential creation. The plaintext password is
// sealed before it touches the catalog and is never returned.
// POST /api/v1/credentials
func (h *Handler) CreateCredential(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		var spec service.CredentialSpec
		if err := c.ShouldBindJSON(&spec); err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
		}
		return h.svc.CreateCredential(c.Request.Context(), &spec)
	})
}

// BindCredential handles attaching a credential to a tag.
// POST /api/v1/credentials/:id/tags/:tagId
func (h *Handler) BindCredential(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		priority, _ := strconv.Atoi(c.Query("priority"))
		err := h.svc.BindCredential(c.Request.Context(), c.Param("id"), c.Param("tagId"), priority)
		return gin.H{}, err
	})
}

// DeleteCredential handles removing a credential.
// DELETE /api/v1/credentials/:id
func (h *Handler) DeleteCredential(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.DeleteCredential(c.Request.Context(), c.Param("id"))
	})
}

// SmartSelectCredentials handles ranking the credentials bound to a tag.
// GET /api/v1/tags/:id/credentials
func (h *Handler) SmartSelectCredentials(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		n, _ := strconv.Atoi(c.Query("n"))
		return h.svc.SmartSelectCredentials(c.Request.Context(), c.Param("id"), n)
	})
}

// OptimizeCredentialPriorities handles compacting the priorities of the
// credentials bound to a tag.
// POST /api/v1/tags/:id/credentials/optimize
func (h *Handler) OptimizeCredentialPriorities(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		return gin.H{}, h.svc.OptimizeCredentialPriorities(c.Request.Context(), c.Param("id"))
	})
}

// RotateVault handles re-sealing every credential under a new key.
// POST /api/v1/vault/rotate
func (h *Handler) RotateVault(c *gin.Context) {
	handle(c, func(c *gin.Context) (interface{}, error) {
		keyId, err := h.svc.RotateVault(c.Request.Context())
		if err != nil {
			return nil, err
		}
		return gin.H{"activeKeyId": keyId}, nil
	})
}
