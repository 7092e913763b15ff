// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"strings"
	"time"
)

// ===== Server only =====

// WithPort sets the TCP port the server listens on (1-65535).
func WithPort(port int) UniversalOption {
	return func(h HasHandler) error {
		s, ok := h.(*Server)
		if !ok {
			return newWithOnlyServerError("port", h)
		}
		if port <= 0 || port > 65535 {
			return newInvalidPortError(port)
		}
		s.config.Port = port
		return nil
	}
}

// WithPath sets the path the handler is mounted on. A missing leading slash is added.
func WithPath(path string) UniversalOption {
	return func(h HasHandler) error {
		s, ok := h.(*Server)
		if !ok {
			return newWithOnlyServerError("path", h)
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		s.config.Path = path
		return nil
	}
}

func WithSSL(certFile, keyFile string) UniversalOption {
	return func(h HasHandler) error {
		s, ok := h.(*Server)
		if !ok {
			return newWithOnlyServerError("ssl", h)
		}
		if certFile == "" || keyFile == "" {
			return ErrSSLFilesEmpty
		}
		s.config.EnableSSL = true
		s.config.CertFile = certFile
		s.config.KeyFile = keyFile
		return nil
	}
}

// ===== Handler =====

func WithMaxConnections(max int) UniversalOption {
	return func(h HasHandler) error {
		if max < 1 {
			return ErrMaxConnectionsLessThanOne
		}
		h.Handler().config.MaxConnections = max
		return nil
	}
}

func WithMaxConnectionsPerIP(max int) UniversalOption {
	return func(h HasHandler) error {
		if max < 1 {
			return ErrMaxConnectionsLessThanOne
		}
		h.Handler().config.MaxConnectionsPerIP = max
		return nil
	}
}

// WithMessageSize sets the largest frame accepted from a client, in bytes.
func WithMessageSize(size int64) UniversalOption {
	return func(h HasHandler) error {
		if size < 1 {
			return ErrMessageSizeLessThanOne
		}
		h.Handler().config.MessageSize = size
		return nil
	}
}

func WithWriteTimeout(timeout time.Duration) UniversalOption {
	return func(h HasHandler) error {
		if timeout <= 0 {
			return ErrTimeoutsLessThanOne
		}
		h.Handler().config.WriteTimeout = timeout
		return nil
	}
}

// WithPingPong sets the heartbeat advertised in the open frame. A session that
// stays silent for interval+timeout is closed.
func WithPingPong(interval, timeout time.Duration) UniversalOption {
	return func(h HasHandler) error {
		if interval <= 0 || timeout <= 0 {
			return ErrPingPongLessThanOne
		}
		h.Handler().config.PingInterval = interval
		h.Handler().config.PingTimeout = timeout
		return nil
	}
}

// WithAllowedOrigins restricts the Origin header of upgrade requests. "*" allows any origin.
func WithAllowedOrigins(origins []string) UniversalOption {
	return func(h HasHandler) error {
		h.Handler().config.AllowedOrigins = origins
		return nil
	}
}

// WithMessageChanBufSize sets how many outbound packets a session can queue.
func WithMessageChanBufSize(size int) UniversalOption {
	return func(h HasHandler) error {
		if size < 1 {
			return ErrQueueSizeLessThanOne
		}
		h.Handler().config.MessageChanBufSize = size
		return nil
	}
}

// WithBinaryFramePrefix controls the leading 0x04 byte on binary attachments
// for EIO=4 sessions. EIO=3 sessions always use it.
func WithBinaryFramePrefix(enabled bool) UniversalOption {
	return func(h HasHandler) error {
		h.Handler().config.BinaryFramePrefix = enabled
		return nil
	}
}

// WithAutoConnect controls whether the root namespace is connected right after
// the handshake, for clients that never send a connect packet for "/".
func WithAutoConnect(enabled bool) UniversalOption {
	return func(h HasHandler) error {
		h.Handler().config.AutoConnect = enabled
		return nil
	}
}

func WithServerPing(enabled bool) UniversalOption {
	return func(h HasHandler) error {
		h.Handler().config.ServerPing = enabled
		return nil
	}
}

func WithRateLimit(config RateLimiterConfig) UniversalOption {
	return func(h HasHandler) error {
		if config.PerClientRate <= 0 || config.PerClientBurst < 1 ||
			config.PerIPRate <= 0 || config.PerIPBurst < 1 ||
			config.MaxRateLimitViolations < 1 ||
			config.CleanupInterval <= 0 || config.EntryTTL <= 0 {
			return ErrInvalidRateLimit
		}
		h.Handler().rateLimitConfig = config
		return nil
	}
}

// WithLogger replaces the logger. A nil logger keeps the default one; a nil
// levels map keeps the default levels.
func WithLogger(logger Logger, levels map[LogType]LogLevel) UniversalOption {
	return func(h HasHandler) error {
		cfg := h.Handler().logger
		if logger != nil {
			cfg.Logger = logger
		}
		if levels != nil {
			cfg.Level = levels
		}
		return nil
	}
}

func WithMiddleware(middleware Middleware) UniversalOption {
	return func(h HasHandler) error {
		if middleware == nil {
			return ErrNilHandlerFunc
		}
		handler := h.Handler()
		handler.middlewares = append(handler.middlewares, middleware)
		return nil
	}
}

// ===== Events =====

// OnConnect sets the connect callback of the root namespace.
func OnConnect(fn OnConnectFunc) UniversalOption {
	return func(h HasHandler) error {
		if fn == nil {
			return ErrNilHandlerFunc
		}
		h.Handler().Of(RootNamespace).OnConnect(fn)
		return nil
	}
}

// OnDisconnect sets the disconnect callback of the root namespace.
func OnDisconnect(fn OnDisconnectFunc) UniversalOption {
	return func(h HasHandler) error {
		if fn == nil {
			return ErrNilHandlerFunc
		}
		h.Handler().Of(RootNamespace).OnDisconnect(fn)
		return nil
	}
}

// OnError sets the callback for errors of every namespace, including protocol
// errors raised before any socket exists (the socket is nil then).
func OnError(fn OnErrorFunc) UniversalOption {
	return func(h HasHandler) error {
		if fn == nil {
			return ErrNilHandlerFunc
		}
		handler := h.Handler()
		handler.mu.Lock()
		handler.onError = fn
		handler.mu.Unlock()
		return nil
	}
}

// WithNamespace registers a namespace other than the root one.
func WithNamespace(name string, onConnect OnConnectFunc) UniversalOption {
	return func(h HasHandler) error {
		if !validNamespace(name) {
			return newInvalidNamespaceError(name)
		}
		ns := h.Handler().Of(name)
		if onConnect != nil {
			ns.OnConnect(onConnect)
		}
		return nil
	}
}
