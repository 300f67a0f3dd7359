/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/netutil"
)

// sshAdapter drives a device over SSH. The TCP dial and the SSH handshake
// are separate steps so a refused connection classifies as unreachable
// while a rejected password classifies as an auth failure.
type sshAdapter struct {
	target Target
	conn   net.Conn
	client *ssh.Client

	openTimeout    time.Duration
	commandTimeout time.Duration
	outputLimit    int
}

func newSSHAdapter() *sshAdapter {
	return &sshAdapter{
		openTimeout:    time.Duration(commonconfig.GetOpenTimeoutSecond()) * time.Second,
		commandTimeout: time.Duration(commonconfig.GetCommandTimeoutSecond()) * time.Second,
		outputLimit:    commonconfig.GetOutputLimitBytes(),
	}
}

func (a *sshAdapter) Open(ctx context.Context, target Target) error {
	a.target = target
	d := net.Dialer{Timeout: a.openTimeout}
	conn, err := d.DialContext(ctx, "tcp", netutil.JoinHostPort(target.Host, target.Port))
	if err != nil {
		if isTimeout(err) {
			return NewFailure(FailureTimeout, err)
		}
		return NewFailure(FailureUnreachable, err)
	}
	a.conn = conn
	return nil
}

func (a *sshAdapter) Authenticate(ctx context.Context, creds Credentials) error {
	if a.conn == nil {
		return NewFailure(FailureProtocolError, fmt.Errorf("authenticate before open"))
	}
	cfg := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(creds.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = creds.Password
				}
				return answers, nil
			}),
		},
		// device keys churn on RMA and re-image; identity is the inventory's job
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         a.openTimeout,
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = a.conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(a.conn, a.conn.RemoteAddr().String(), cfg)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") ||
			strings.Contains(err.Error(), "permission denied") {
			return NewFailure(FailureAuth, err)
		}
		if isTimeout(err) {
			return NewFailure(FailureTimeout, err)
		}
		return NewFailure(FailureProtocolError, err)
	}
	_ = a.conn.SetDeadline(time.Time{})
	a.client = ssh.NewClient(sshConn, chans, reqs)
	return nil
}

func (a *sshAdapter) Run(ctx context.Context, command string) (string, error) {
	if a.client == nil {
		return "", NewFailure(FailureProtocolError, fmt.Errorf("run before authenticate"))
	}
	session, err := a.client.NewSession()
	if err != nil {
		return "", NewFailure(FailureProtocolError, err)
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()

	type result struct {
		output []byte
		err    error
	}
	done := make(chan result, 1)
	go func() {
		output, err := session.CombinedOutput(command)
		done <- result{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		// unblock the CombinedOutput goroutine
		_ = session.Close()
		return "", NewFailure(FailureTimeout, ctx.Err())
	case res := <-done:
		output, limitErr := boundOutput(res.output, a.outputLimit)
		if res.err != nil {
			if _, ok := res.err.(*ssh.ExitError); ok {
				return output, NewFailure(FailureCommandError,
					fmt.Errorf("command %q failed: %v", command, res.err))
			}
			return output, NewFailure(FailureProtocolError, res.err)
		}
		return output, limitErr
	}
}

func (a *sshAdapter) Close() error {
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		a.conn = nil
		return err
	}
	if a.conn != nil {
		err := a.conn.Close()
		a.conn = nil
		return err
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// boundOutput enforces the capture limit. Overrun is a command error, never
// a silent truncation; the clipped output is still returned for session logs.
func boundOutput(output []byte, limit int) (string, error) {
	if limit > 0 && len(output) > limit {
		return string(output[:limit]), NewFailure(FailureCommandError,
			fmt.Errorf("output exceeded limit"))
	}
	return string(output), nil
}
