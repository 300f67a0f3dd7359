/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package device

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/netutil"
)

// telnet protocol bytes
const (
	telnetIAC  = 255
	telnetDONT = 254
	telnetDO   = 253
	telnetWONT = 252
	telnetWILL = 251
)

// prompts observed across vendor CLIs. Login/password prompts gate
// authentication; the command prompt marks end of output.
var (
	loginPrompts    = []string{"login:", "username:", "user name:"}
	passwordPrompts = []string{"password:"}
	shellPrompts    = []string{"#", ">", "$ "}
	authFailures    = []string{"login invalid", "authentication failed", "access denied", "login incorrect", "bad passwords"}
)

// telnetAdapter drives a device over a raw telnet session. Option
// negotiation is answered with refusals (WONT/DONT) which every network OS
// accepts, leaving a plain byte stream.
type telnetAdapter struct {
	target Target
	conn   net.Conn

	openTimeout    time.Duration
	commandTimeout time.Duration
	outputLimit    int
}

func newTelnetAdapter() *telnetAdapter {
	return &telnetAdapter{
		openTimeout:    time.Duration(commonconfig.GetOpenTimeoutSecond()) * time.Second,
		commandTimeout: time.Duration(commonconfig.GetCommandTimeoutSecond()) * time.Second,
		outputLimit:    commonconfig.GetOutputLimitBytes(),
	}
}

func (a *telnetAdapter) Open(ctx context.Context, target Target) error {
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

func (a *telnetAdapter) Authenticate(ctx context.Context, creds Credentials) error {
	if a.conn == nil {
		return NewFailure(FailureProtocolError, fmt.Errorf("authenticate before open"))
	}
	banner, err := a.readUntil(ctx, append(loginPrompts, passwordPrompts...))
	if err != nil {
		return err
	}
	lowered := strings.ToLower(banner)
	if containsAny(lowered, loginPrompts) {
		if err = a.writeLine(creds.Username); err != nil {
			return err
		}
		if _, err = a.readUntil(ctx, passwordPrompts); err != nil {
			return err
		}
	}
	if err = a.writeLine(creds.Password); err != nil {
		return err
	}
	reply, err := a.readUntil(ctx, shellPrompts)
	if err != nil {
		// many devices just re-prompt on a bad password until the read
		// times out; surface that as an auth failure, not a timeout
		if Classify(err) == FailureTimeout {
			return NewFailure(FailureAuth, fmt.Errorf("no shell prompt after login"))
		}
		return err
	}
	if containsAny(strings.ToLower(reply), authFailures) {
		return NewFailure(FailureAuth, fmt.Errorf("device rejected credentials"))
	}
	return nil
}

func (a *telnetAdapter) Run(ctx context.Context, command string) (string, error) {
	if a.conn == nil {
		return "", NewFailure(FailureProtocolError, fmt.Errorf("run before authenticate"))
	}
	if err := a.writeLine(command); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, a.commandTimeout)
	defer cancel()
	output, err := a.readUntil(ctx, shellPrompts)
	if err != nil {
		return "", err
	}
	// strip the echoed command line
	if idx := strings.Index(output, "\n"); idx >= 0 {
		output = output[idx+1:]
	}
	return boundOutput([]byte(output), a.outputLimit)
}

func (a *telnetAdapter) Close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

func (a *telnetAdapter) writeLine(line string) error {
	_, err := a.conn.Write([]byte(line + "\r\n"))
	if err != nil {
		return NewFailure(FailureProtocolError, err)
	}
	return nil
}

// readUntil consumes the stream, answering option negotiation, until one of
// the markers appears at the end of the buffered text or the deadline hits.
func (a *telnetAdapter) readUntil(ctx context.Context, markers []string) (string, error) {
	deadline := time.Now().Add(a.commandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		if err := a.conn.SetReadDeadline(deadline); err != nil {
			return "", NewFailure(FailureProtocolError, err)
		}
		n, err := a.conn.Read(chunk)
		if n > 0 {
			buf.Write(a.negotiate(chunk[:n]))
			text := buf.String()
			if endsWithAny(strings.ToLower(strings.TrimRight(text, " ")), markers) {
				return text, nil
			}
		}
		if err != nil {
			if isTimeout(err) {
				return buf.String(), NewFailure(FailureTimeout, err)
			}
			return buf.String(), NewFailure(FailureProtocolError, err)
		}
	}
}

// negotiate strips IAC sequences from data, replying WONT/DONT to every
// DO/WILL so the peer stops asking.
func (a *telnetAdapter) negotiate(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != telnetIAC || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		cmd := data[i+1]
		switch cmd {
		case telnetDO, telnetWILL:
			if i+2 < len(data) {
				reply := byte(telnetWONT)
				if cmd == telnetWILL {
					reply = telnetDONT
				}
				_, _ = a.conn.Write([]byte{telnetIAC, reply, data[i+2]})
				i += 2
			}
		case telnetDONT, telnetWONT:
			i += 2
		case telnetIAC:
			out = append(out, telnetIAC)
			i++
		default:
			i++
		}
	}
	return out
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func endsWithAny(text string, markers []string) bool {
	trimmed := strings.TrimRight(text, " \r\n")
	for _, marker := range markers {
		if strings.HasSuffix(trimmed, strings.TrimRight(marker, " ")) {
			return true
		}
	}
	return false
}
