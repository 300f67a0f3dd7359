/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const RavenPrefix = "Raven."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00-99), used to distinguish errors from different interfaces.
   00: General errors
   01: Job / run related errors
   02: Device related errors
   03: Vault related errors
   [yyy] Error code range (000-999)
*/

// public: 00xxx
const (
	InternalError = RavenPrefix + "00001"
	BadRequest    = RavenPrefix + "00002"
	Forbidden     = RavenPrefix + "00003"
	AlreadyExist  = RavenPrefix + "00004"
	NotFound      = RavenPrefix + "00005"
	Conflict      = RavenPrefix + "00006"
	Unavailable   = RavenPrefix + "00007"
)

// job: 01xxx
const (
	JobDisabled = RavenPrefix + "01001"
	RunTerminal = RavenPrefix + "01002"
	NoDevices   = RavenPrefix + "01003"
)

// device: 02xxx
const (
	DeviceNotFound = RavenPrefix + "02001"
)

// vault: 03xxx
const (
	VaultError = RavenPrefix + "03001"
)

// StatusError is an error with a stable code and an HTTP status for the API
// edge. Payload detail is never inlined without redaction; the Message must
// already be safe.
type StatusError struct {
	Code     int
	Reason   string
	Message  string
	Kind     string
	Resource string
}

func (e *StatusError) Error() string {
	return e.Message
}

// ReasonForError returns the stable code tag of err, or "" when err carries none.
func ReasonForError(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Reason
	}
	return ""
}

// IsRaven returns true when the error carries a NetRaven code.
func IsRaven(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(ReasonForError(err), RavenPrefix)
}

func IsAlreadyExist(err error) bool {
	return ReasonForError(err) == AlreadyExist
}

func IsBadRequest(err error) bool {
	return ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return ReasonForError(err) == InternalError
}

func IsConflict(err error) bool {
	return ReasonForError(err) == Conflict
}

func IsDisabled(err error) bool {
	return ReasonForError(err) == JobDisabled
}

func IsTerminal(err error) bool {
	return ReasonForError(err) == RunTerminal
}

func IsNoDevices(err error) bool {
	return ReasonForError(err) == NoDevices
}

func IsVault(err error) bool {
	return ReasonForError(err) == VaultError
}

func IsNotFound(err error) bool {
	reason := ReasonForError(err)
	return reason == NotFound || reason == DeviceNotFound
}

func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func GetErrorCode(err error) string {
	if err == nil || !IsRaven(err) {
		return ""
	}
	return ReasonForError(err)
}

func NewBadRequest(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusBadRequest,
		Reason:  BadRequest,
		Message: fmt.Sprintf("Bad request. %s", message),
	}
}

func NewInternalError(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusInternalServerError,
		Reason:  InternalError,
		Message: fmt.Sprintf("Internal error. %s", message),
	}
}

func NewAlreadyExist(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusConflict,
		Reason:  AlreadyExist,
		Message: message,
	}
}

func NewConflict(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusConflict,
		Reason:  Conflict,
		Message: message,
	}
}

func NewForbidden(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusForbidden,
		Reason:  Forbidden,
		Message: message,
	}
}

func NewNotFound(kind, name string) *StatusError {
	reason := NotFound
	if kind == "Device" {
		reason = DeviceNotFound
	}
	return &StatusError{
		Code:     http.StatusNotFound,
		Reason:   reason,
		Kind:     kind,
		Resource: name,
		Message:  fmt.Sprintf("%s %s not found.", kind, name),
	}
}

func NewNotFoundWithMessage(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusNotFound,
		Reason:  NotFound,
		Message: message,
	}
}

func NewDisabled(name string) *StatusError {
	return &StatusError{
		Code:    http.StatusConflict,
		Reason:  JobDisabled,
		Message: fmt.Sprintf("Job %s is disabled.", name),
	}
}

func NewTerminal(runId string) *StatusError {
	return &StatusError{
		Code:    http.StatusConflict,
		Reason:  RunTerminal,
		Message: fmt.Sprintf("Job run %s already reached a terminal state.", runId),
	}
}

func NewNoDevices(name string) *StatusError {
	return &StatusError{
		Code:    http.StatusUnprocessableEntity,
		Reason:  NoDevices,
		Message: fmt.Sprintf("Job %s resolves to no devices.", name),
	}
}

func NewVaultError(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusInternalServerError,
		Reason:  VaultError,
		Message: fmt.Sprintf("Vault error. %s", message),
	}
}

func NewUnavailable(message string) *StatusError {
	return &StatusError{
		Code:    http.StatusServiceUnavailable,
		Reason:  Unavailable,
		Message: message,
	}
}
