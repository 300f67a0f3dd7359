/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import (
	"bytes"
	"crypto/tls"
	"net/http"
	"sync"
	"time"
)

// client is an HTTP client implementation that wraps the standard http.Client
// with simplified request building and a pooled transport.
type client struct {
	*http.Client
}

const (
	DefaultTimeout = 30 * time.Second
)

var (
	once     sync.Once
	instance *client
)

// Interface is the minimal surface consumers depend on.
type Interface interface {
	Do(req *http.Request) (*Result, error)
}

// NewClient creates a singleton instance of the HTTP client. TLS verification
// is skipped because managed devices almost universally present self-signed
// certificates.
func NewClient() Interface {
	once.Do(func() {
		instance = &client{
			Client: &http.Client{
				Timeout: DefaultTimeout,
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{
						InsecureSkipVerify: true,
					},
					TLSHandshakeTimeout:   10 * time.Second,
					MaxIdleConns:          128,
					MaxConnsPerHost:       64,
					IdleConnTimeout:       1 * time.Minute,
					ExpectContinueTimeout: 10 * time.Second,
				},
			},
		}
	})
	return instance
}

// BuildRequest constructs an HTTP request with the given url, method and body.
func BuildRequest(url, httpMethod string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader([]byte{})
	}
	req, err := http.NewRequest(httpMethod, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Do executes the request and wraps the response.
func (c *client) Do(req *http.Request) (*Result, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	return newResult(resp)
}
