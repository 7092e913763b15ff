// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"net/http"
	"time"
)

type HandlerConfig struct {
	MaxConnections      int
	MaxConnectionsPerIP int
	MessageSize         int64 // max websocket frame size, also advertised as maxPayload
	WriteTimeout        time.Duration
	PingInterval        time.Duration
	PingTimeout         time.Duration
	AllowedOrigins      []string
	MessageChanBufSize  int
	BinaryFramePrefix   bool // prefix binary attachments with the engine "message" byte on EIO=4
	AutoConnect         bool // announce the root namespace right after the open frame
	ServerPing          bool // send engine pings every PingInterval
}

type ServerConfig struct {
	Port      int
	Path      string
	EnableSSL bool
	CertFile  string
	KeyFile   string
}

type RateLimiterConfig struct {
	PerClientRate          float64 // frames per second per session
	PerClientBurst         int
	PerIPRate              float64 // handshakes per second per ip
	PerIPBurst             int
	MaxRateLimitViolations int
	CleanupInterval        time.Duration
	EntryTTL               time.Duration
}

type Middleware func(http.Handler) http.Handler

func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: 3000,
		Path: "/socket.io/",
	}
}

func DefaultHandlerConfig() *HandlerConfig {
	return &HandlerConfig{
		MaxConnections:      1000,
		MaxConnectionsPerIP: 100,
		MessageSize:         1000000,
		WriteTimeout:        10 * time.Second,
		PingInterval:        25 * time.Second,
		PingTimeout:         60 * time.Second,
		MessageChanBufSize:  256,
		BinaryFramePrefix:   true,
		AutoConnect:         true,
		ServerPing:          true,
	}
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		PerClientRate:          100,
		PerClientBurst:         200,
		PerIPRate:              20,
		PerIPBurst:             50,
		MaxRateLimitViolations: 10,
		CleanupInterval:        time.Minute,
		EntryTTL:               5 * time.Minute,
	}
}
