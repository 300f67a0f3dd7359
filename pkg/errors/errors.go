/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error is a custom error type that includes stack trace information,
// an inner error, an error code, and an error message.
type Error struct {
	Stack      []runtime.Frame
	InnerError error
	Code       string
	Message    string
}

// Error implements the error interface and returns a formatted error string.
func (e *Error) Error() string {
	if e.InnerError == nil {
		return fmt.Sprintf(" code %s.message %s \nstack %s", e.Code, e.Message, e.GetStackString())
	}
	return fmt.Sprintf("error %s code %s message %s \nstack %s", e.InnerError.Error(), e.Code, e.Message, e.GetStackString())
}

// GetStackString returns the complete stack trace as a formatted string,
// one frame per line, with package path prefixes removed.
func (e *Error) GetStackString() string {
	result := ""
	for _, frame := range e.Stack {
		funcName := ""
		if frame.Func != nil {
			funcName = frame.Func.Name()
		}
		funcNames := strings.Split(funcName, "/")
		if len(funcNames) > 0 {
			funcName = funcNames[len(funcNames)-1]
		}
		result = fmt.Sprintf("%s%s:%d %s\n", result, frame.File, frame.Line, funcName)
	}
	return result
}

// WithCode sets the error code and returns the Error instance for chaining.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithMessage sets the error message and returns the Error instance for chaining.
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// WithError sets the inner error and returns the Error instance for chaining.
func (e *Error) WithError(err error) *Error {
	e.InnerError = err
	return e
}

// NewWithStack creates an Error carrying the caller's stack.
func NewWithStack(message string) *Error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var stack []runtime.Frame
	for {
		frame, more := frames.Next()
		stack = append(stack, frame)
		if !more {
			break
		}
	}
	return &Error{Stack: stack, Message: message}
}
