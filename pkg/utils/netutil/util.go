/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package netutil

import (
	"context"
	"fmt"
	"net"
	"time"
)

// GetLocalIp returns the first non-loopback IPv4 address of this host.
func GetLocalIp() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no non-loopback IPv4 address found")
}

// CheckReachable performs a cheap TCP dial against host:port and closes the
// connection immediately. It honors both the context and the timeout.
func CheckReachable(ctx context.Context, host string, port int, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", JoinHostPort(host, port))
	if err != nil {
		return err
	}
	return conn.Close()
}

// JoinHostPort formats host:port, bracketing IPv6 literals.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
