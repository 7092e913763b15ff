// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Engine handshake error codes written in the body of a rejected request.
const (
	engineErrTransportUnknown = 0
	engineErrUnknownSID       = 1
	engineErrBadRequest       = 3
	engineErrBadProtocol      = 5
)

// Handler serves Socket.IO clients over websocket. It is an http.Handler and
// can be mounted on any mux; Server mounts it on ServerConfig.Path.
type Handler struct {
	hub        IHub
	config     *HandlerConfig
	namespaces *SharedCollection[*Namespace, string]
	onError    OnErrorFunc

	upgrader    websocket.Upgrader
	hubRunning  sync.Once
	closeOnce   sync.Once
	closed      atomic.Bool
	middlewares []Middleware
	mu          sync.RWMutex

	connectionPool  *ConnectionPool
	logger          *LoggerConfig
	rateLimiter     RateLimiter
	rateLimitConfig RateLimiterConfig
	stats           *HandlerStats
}

// NewHandler returns a Handler with the root namespace registered. Options are
// applied in order; the first failing option aborts construction.
func NewHandler(options ...UniversalOption) (*Handler, error) {
	h := newHandler()

	for _, o := range options {
		if err := o(h); err != nil {
			return nil, err
		}
	}

	h.init()
	return h, nil
}

func newHandler() *Handler {
	h := &Handler{
		config:          DefaultHandlerConfig(),
		namespaces:      NewSharedCollection[*Namespace, string](),
		logger:          DefaultLoggerConfig(),
		rateLimitConfig: DefaultRateLimiterConfig(),
		stats:           newHandlerStats(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	h.namespaces.Add(NewNamespace(RootNamespace), RootNamespace)
	return h
}

// init builds what depends on the final configuration.
func (h *Handler) init() {
	h.hub = NewHub(h.logger)
	h.upgrader.CheckOrigin = h.checkOrigin
	h.rateLimiter = NewRateLimiterManager(h.rateLimitConfig)
	h.initConnectionPool()
}

func (h *Handler) Handler() *Handler {
	return h
}

func (h *Handler) Config() HandlerConfig {
	return *h.config
}

func (h *Handler) Hub() IHub {
	return h.hub
}

func (h *Handler) Middlewares() []Middleware {
	return h.middlewares
}

// Of returns the namespace with the given name, creating it when needed.
// Names without a leading slash are prefixed with one.
func (h *Handler) Of(name string) *Namespace {
	if name == "" {
		name = RootNamespace
	}
	if name[0] != '/' {
		name = "/" + name
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ns, ok := h.namespaces.Get(name); ok {
		return ns
	}
	ns := NewNamespace(name)
	h.namespaces.Add(ns, name)
	return ns
}

func (h *Handler) namespace(name string) (*Namespace, bool) {
	return h.namespaces.Get(name)
}

func (h *Handler) Namespaces() []string {
	names := make([]string, 0, h.namespaces.Len())
	for name := range h.namespaces.GetAll() {
		names = append(names, name)
	}
	return names
}

// Stats returns a snapshot of the handler counters.
func (h *Handler) Stats() Stats {
	s := h.stats.snapshot()
	s.ActiveConnections = h.hub.Count()
	if h.connectionPool != nil {
		_, s.ConnectionsPerIP = h.connectionPool.GetStats()
		s.PeakConnections = h.connectionPool.Peak()
	}

	s.Namespaces = make(map[string]NamespaceStat)
	for name, ns := range h.namespaces.GetAll() {
		s.Namespaces[name] = NamespaceStat{Name: name, Sockets: ns.Count()}
	}
	return s
}

func (h *Handler) GetConnectionStats() (int, map[string]int) {
	if h.connectionPool == nil {
		return 0, map[string]int{}
	}
	return h.connectionPool.GetStats()
}

// Close stops the hub, which closes every live session, and the rate limiter.
// A closed handler cannot serve new connections.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.hubRunning.Do(func() {})
		h.hub.Stop()
		if h.rateLimiter != nil {
			h.rateLimiter.Stop()
		}
	})
}

// ===== CONTROLLERS =====

// ServeHTTP implements http.Handler by running HandleWebSocket behind the
// configured middlewares.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ApplyMiddlewares(http.HandlerFunc(h.HandleWebSocket)).ServeHTTP(w, r)
}

// ApplyMiddlewares wraps handler so the first added middleware runs first.
func (h *Handler) ApplyMiddlewares(handler http.Handler) http.Handler {
	finalHandler := handler
	for i := len(h.middlewares) - 1; i >= 0; i-- {
		finalHandler = h.middlewares[i](finalHandler)
	}
	return finalHandler
}

// HandleWebSocket validates the engine query, upgrades the connection and
// starts the session loops. The pool slot taken here is released when the
// session closes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if r := recover(); r != nil {
			h.log(LogTypeError, LogLevelError, "PANIC RECOVERED in HandleWebSocket: %v\nStack trace:\n%s\n", r, string(debug.Stack()))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}()

	if h.closed.Load() {
		http.Error(w, ErrServerShutdown.Error(), http.StatusServiceUnavailable)
		return
	}
	h.ensureHubRunning(context.Background())

	query := r.URL.Query()
	if transport := query.Get("transport"); transport != "websocket" {
		h.log(LogTypeConnection, LogLevelWarn, "rejected request from %s: %v", r.RemoteAddr, newTransportUnknownError(transport))
		writeEngineError(w, engineErrTransportUnknown, "Transport unknown")
		return
	}

	protocol, ok := parseProtocol(query.Get("EIO"))
	if !ok {
		h.log(LogTypeConnection, LogLevelWarn, "rejected request from %s: %v", r.RemoteAddr, newUnsupportedProtocolError(query.Get("EIO")))
		writeEngineError(w, engineErrBadProtocol, "Unsupported protocol version")
		return
	}

	if sid := query.Get("sid"); sid != "" {
		h.log(LogTypeConnection, LogLevelWarn, "rejected request from %s: %v", r.RemoteAddr, newSessionNotFoundError(sid))
		writeEngineError(w, engineErrUnknownSID, "Session ID unknown")
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		writeEngineError(w, engineErrBadRequest, "Bad request")
		return
	}

	ctx := NewContextFromRequest(h, r)
	ctx.connInfo.Protocol = protocol
	clientIP := ctx.ClientIP()

	if h.rateLimiter != nil && !h.rateLimiter.AllowIP(clientIP) {
		h.stats.rateLimitViolations.Add(1)
		h.log(LogTypeRateLimit, LogLevelWarn, "handshake rate exceeded for %s", clientIP)
		ctx.Cancel()
		http.Error(w, ErrTooManyRequests.Error(), http.StatusTooManyRequests)
		return
	}

	if h.connectionPool != nil {
		if err := h.connectionPool.Acquire(clientIP); err != nil {
			h.log(LogTypeConnection, LogLevelWarn, "connection rejected for %s: %v", clientIP, err)
			ctx.Cancel()
			http.Error(w, "Too many connections", http.StatusTooManyRequests)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.connectionPool != nil {
			h.connectionPool.Release(clientIP)
		}
		h.reportError(nil, newUpgradeFailedError(err), ctx)
		ctx.Cancel()
		return
	}

	conn.SetReadLimit(h.config.MessageSize)

	session := newSession(newSessionID(), conn, h, ctx, protocol)
	safeGoroutine("WriteLoop-"+session.id, session.writeLoop)
	h.stats.connected()
	if !h.admit(session) {
		return
	}
	h.log(LogTypeConnection, LogLevelInfo, "new connection %s from %s (EIO=%d)", session.id, clientIP, protocol)

	if err := session.open(); err != nil {
		h.reportError(nil, err, ctx)
	}

	safeGoroutine("ReadLoop-"+session.id, session.readLoop)
}

// admit registers the session with the hub. It reports false, and closes the
// session, when the handler was closed while the connection was upgrading.
func (h *Handler) admit(s *Session) bool {
	h.hub.AddSession(s)
	if h.closed.Load() {
		s.Close()
		return false
	}
	return true
}

// sessionClosed releases what the session held. It runs once per session.
func (h *Handler) sessionClosed(s *Session, reason string) {
	h.hub.RemoveSession(s)
	if h.connectionPool != nil {
		h.connectionPool.Release(s.ctx.ClientIP())
	}
	if h.rateLimiter != nil {
		h.rateLimiter.Forget(s.id)
	}
	h.stats.disconnected.Add(1)
	h.log(LogTypeConnection, LogLevelInfo, "%s disconnected: %s (after %s)", s.id, reason, s.ctx.ProcessingDuration().Round(time.Millisecond))
}

func (h *Handler) reportError(s *Socket, err error, ctx *Context) {
	if err == nil {
		return
	}
	h.stats.recordError(err)
	h.log(LogTypeError, LogLevelError, "%v", err)

	h.mu.RLock()
	onError := h.onError
	h.mu.RUnlock()
	if onError != nil {
		_ = onError(s, err, ctx)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

func parseProtocol(v string) (int, bool) {
	switch v {
	case "4":
		return 4, true
	case "3":
		return 3, true
	default:
		return 0, false
	}
}

func writeEngineError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
	})
}

func (h *Handler) initConnectionPool() {
	if h.config.MaxConnections > 0 {
		h.connectionPool = NewConnectionPool(
			h.config.MaxConnections,
			h.config.MaxConnectionsPerIP,
		)
		h.log(LogTypeConnection, LogLevelDebug,
			"connection pool initialized: max_total=%d, max_per_ip=%d",
			h.config.MaxConnections, h.config.MaxConnectionsPerIP)
	}
}

// ensureHubRunning starts the hub if it is not already running.
// It is safe to call concurrently.
func (h *Handler) ensureHubRunning(ctx context.Context) {
	h.hubRunning.Do(func() {
		go h.hub.Run(ctx)
	})
}

func (h *Handler) log(logType LogType, level LogLevel, msg string, args ...interface{}) {
	h.logger.Log(logType, level, msg, args...)
}
