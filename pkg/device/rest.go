/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package device

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/httpclient"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/netutil"
)

// restAdapter drives devices exposing an HTTPS management API. "Commands"
// are API paths: a GET path verbatim, or "METHOD path body" for the rest.
type restAdapter struct {
	target Target
	client httpclient.Interface
	creds  Credentials
	opened bool

	commandTimeout time.Duration
	outputLimit    int
}

func newRESTAdapter() *restAdapter {
	return &restAdapter{
		client:         httpclient.NewClient(),
		commandTimeout: time.Duration(commonconfig.GetCommandTimeoutSecond()) * time.Second,
		outputLimit:    commonconfig.GetOutputLimitBytes(),
	}
}

func (a *restAdapter) Open(ctx context.Context, target Target) error {
	a.target = target
	// HTTP has no session to hold open; probe the port so unreachable
	// devices classify the same as on the other transports.
	timeout := time.Duration(commonconfig.GetReachabilityTimeoutSecond()) * time.Second
	if err := netutil.CheckReachable(ctx, target.Host, target.Port, timeout); err != nil {
		if isTimeout(err) {
			return NewFailure(FailureTimeout, err)
		}
		return NewFailure(FailureUnreachable, err)
	}
	a.opened = true
	return nil
}

func (a *restAdapter) Authenticate(ctx context.Context, creds Credentials) error {
	if !a.opened {
		return NewFailure(FailureProtocolError, fmt.Errorf("authenticate before open"))
	}
	a.creds = creds
	// verify the credentials up front with a harmless request
	result, err := a.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	if result.StatusCode == http.StatusUnauthorized || result.StatusCode == http.StatusForbidden {
		return NewFailure(FailureAuth, fmt.Errorf("device returned %d", result.StatusCode))
	}
	return nil
}

func (a *restAdapter) Run(ctx context.Context, command string) (string, error) {
	if !a.opened {
		return "", NewFailure(FailureProtocolError, fmt.Errorf("run before authenticate"))
	}
	method, path, body := parseRESTCommand(command)
	result, err := a.do(ctx, method, path, body)
	if err != nil {
		return "", err
	}
	output, limitErr := boundOutput(result.Body, a.outputLimit)
	switch {
	case result.StatusCode == http.StatusUnauthorized || result.StatusCode == http.StatusForbidden:
		return output, NewFailure(FailureAuth, fmt.Errorf("device returned %d", result.StatusCode))
	case !result.IsSuccess():
		return output, NewFailure(FailureCommandError,
			fmt.Errorf("%s %s returned %d", method, path, result.StatusCode))
	}
	return output, limitErr
}

func (a *restAdapter) Close() error {
	a.opened = false
	return nil
}

func (a *restAdapter) do(ctx context.Context, method, path string, body []byte) (*httpclient.Result, error) {
	endpoint := url.URL{
		Scheme: "https",
		Host:   netutil.JoinHostPort(a.target.Host, a.target.Port),
		Path:   path,
	}
	req, err := httpclient.BuildRequest(endpoint.String(), method, body)
	if err != nil {
		return nil, NewFailure(FailureProtocolError, err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()
	req = req.WithContext(ctx)
	req.SetBasicAuth(a.creds.Username, a.creds.Password)

	result, err := a.client.Do(req)
	if err != nil {
		if isTimeout(err) || ctx.Err() == context.DeadlineExceeded {
			return nil, NewFailure(FailureTimeout, err)
		}
		return nil, NewFailure(FailureUnreachable, err)
	}
	return result, nil
}

// parseRESTCommand splits "METHOD path [body]" and defaults bare paths to GET.
func parseRESTCommand(command string) (method, path string, body []byte) {
	fields := strings.SplitN(strings.TrimSpace(command), " ", 3)
	switch {
	case len(fields) == 1:
		return http.MethodGet, fields[0], nil
	case len(fields) == 2:
		return strings.ToUpper(fields[0]), fields[1], nil
	default:
		return strings.ToUpper(fields[0]), fields[1], []byte(fields[2])
	}
}
