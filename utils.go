// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

type UniversalOption func(HasHandler) error

type HasHandler interface {
	Handler() *Handler
}

// IWebSocketConn is the subset of *websocket.Conn used by a Session.
type IWebSocketConn interface {
	Close() error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

type ConnectionInfo struct {
	ClientIP  string
	UserAgent string
	Origin    string
	Headers   map[string]string
	Query     url.Values
	RequestID string
	Protocol  int // engine protocol revision (EIO query parameter)
}

func newSessionID() string {
	return uuid.NewString()
}

func safeGoroutine(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("PANIC RECOVERED in %s: %v\nStack trace:\n%s\n",
					name, r, string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// extractHeaders copies the request headers handlers usually care about.
func extractHeaders(r *http.Request, extraHeaders ...string) map[string]string {
	headers := make(map[string]string)

	relevantHeaders := []string{
		"Authorization",
		"X-Forwarded-For",
		"X-Real-Ip",
		"Accept-Language",
		"Cookie",
	}
	relevantHeaders = append(relevantHeaders, extraHeaders...)

	for _, header := range relevantHeaders {
		if value := r.Header.Get(header); value != "" {
			headers[header] = value
		}
	}

	return headers
}

// getClientIPFromRequest prefers X-Real-Ip, then the first X-Forwarded-For hop,
// then the remote address of the connection.
func getClientIPFromRequest(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for i := 0; i < len(forwarded); i++ {
			if forwarded[i] == ',' {
				forwarded = forwarded[:i]
				break
			}
		}
		if host, _, err := net.SplitHostPort(forwarded); err == nil {
			return host
		}
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func generateRequestID() string {
	randN, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("req_%d_%d", time.Now().UnixNano(), randN)
}
