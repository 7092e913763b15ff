// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"context"
	"net/http"
	"time"
)

// Context carries what is known about the connection a socket belongs to.
// It lives as long as the session; its context.Context is cancelled when the
// session closes.
type Context struct {
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	connInfo  *ConnectionInfo

	handler *Handler
}

// NewContext creates a context that is not bound to any request.
func NewContext(handler *Handler) *Context {
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		handler:   handler,
		connInfo: &ConnectionInfo{
			RequestID: generateRequestID(),
		},
	}
}

// NewContextFromRequest creates a context from the upgrade request. The request
// cancellation is detached so the context outlives ServeHTTP.
func NewContextFromRequest(handler *Handler, r *http.Request) *Context {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	return &Context{
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		handler:   handler,
		connInfo: &ConnectionInfo{
			ClientIP:  getClientIPFromRequest(r),
			UserAgent: r.Header.Get("User-Agent"),
			Origin:    r.Header.Get("Origin"),
			Headers:   extractHeaders(r),
			Query:     r.URL.Query(),
			RequestID: generateRequestID(),
		},
	}
}

func (c *Context) Context() context.Context {
	return c.ctx
}

func (c *Context) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Context) ConnInfo() *ConnectionInfo {
	return c.connInfo
}

func (c *Context) RequestID() string {
	if c.connInfo != nil {
		return c.connInfo.RequestID
	}
	return ""
}

// ClientIP returns "unknown" when the context is not bound to a connection.
func (c *Context) ClientIP() string {
	if c.connInfo != nil && c.connInfo.ClientIP != "" {
		return c.connInfo.ClientIP
	}
	return "unknown"
}

func (c *Context) UserAgent() string {
	if c.connInfo != nil {
		return c.connInfo.UserAgent
	}
	return ""
}

func (c *Context) Origin() string {
	if c.connInfo != nil {
		return c.connInfo.Origin
	}
	return ""
}

func (c *Context) Header(key string) string {
	if c.connInfo != nil && c.connInfo.Headers != nil {
		return c.connInfo.Headers[key]
	}
	return ""
}

func (c *Context) Headers() map[string]string {
	if c.connInfo != nil {
		return c.connInfo.Headers
	}
	return nil
}

// Query returns a query parameter of the upgrade request, e.g. "EIO".
func (c *Context) Query(key string) string {
	if c.connInfo != nil && c.connInfo.Query != nil {
		return c.connInfo.Query.Get(key)
	}
	return ""
}

func (c *Context) Protocol() int {
	if c.connInfo != nil {
		return c.connInfo.Protocol
	}
	return 0
}

func (c *Context) ProcessingDuration() time.Duration {
	return time.Since(c.startTime)
}

func (c *Context) Handler() *Handler {
	return c.handler
}
