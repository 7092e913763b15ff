// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type NamespaceStat struct {
	Name    string `json:"name"`
	Sockets int    `json:"sockets"`
}

type HandlerStats struct {
	startTime           time.Time
	totalConnections    atomic.Uint64
	disconnected        atomic.Uint64
	eventsReceived      atomic.Uint64
	emitsSent           atomic.Uint64
	acksSent            atomic.Uint64
	framesSent          atomic.Uint64
	framesReceived      atomic.Uint64
	bytesSent           atomic.Uint64
	bytesReceived       atomic.Uint64
	errorCount          atomic.Uint64
	rateLimitViolations atomic.Uint64

	mu        sync.RWMutex
	lastError string
}

// Stats is a point-in-time snapshot returned by Handler.Stats.
type Stats struct {
	// Connections
	ActiveConnections int            `json:"active_connections"`
	TotalConnections  uint64         `json:"total_connections"`
	ConnectionsPerIP  map[string]int `json:"connections_per_ip,omitempty"`
	PeakConnections   int            `json:"peak_connections"`
	Disconnected      uint64         `json:"disconnected"`

	// Traffic
	EventsReceived uint64 `json:"events_received"`
	EmitsSent      uint64 `json:"emits_sent"`
	AcksSent       uint64 `json:"acks_sent"`
	FramesSent     uint64 `json:"frames_sent"`
	FramesReceived uint64 `json:"frames_received"`
	BytesSent      uint64 `json:"bytes_sent"`
	BytesReceived  uint64 `json:"bytes_received"`

	Namespaces map[string]NamespaceStat `json:"namespaces"`

	ActiveGoroutines int           `json:"active_goroutines"`
	Uptime           time.Duration `json:"uptime"`

	// Errors & Health
	ErrorCount          uint64 `json:"error_count"`
	LastError           string `json:"last_error,omitempty"`
	RateLimitViolations uint64 `json:"rate_limit_violations"`

	Timestamp time.Time `json:"timestamp"`
}

func newHandlerStats() *HandlerStats {
	return &HandlerStats{startTime: time.Now()}
}

func (s *HandlerStats) connected() {
	s.totalConnections.Add(1)
}

func (s *HandlerStats) frameReceived(n int) {
	s.framesReceived.Add(1)
	s.bytesReceived.Add(uint64(n))
}

func (s *HandlerStats) frameSent(n int) {
	s.framesSent.Add(1)
	s.bytesSent.Add(uint64(n))
}

func (s *HandlerStats) recordError(err error) {
	s.errorCount.Add(1)
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *HandlerStats) snapshot() Stats {
	s.mu.RLock()
	lastError := s.lastError
	s.mu.RUnlock()

	now := time.Now()
	return Stats{
		TotalConnections:    s.totalConnections.Load(),
		Disconnected:        s.disconnected.Load(),
		EventsReceived:      s.eventsReceived.Load(),
		EmitsSent:           s.emitsSent.Load(),
		AcksSent:            s.acksSent.Load(),
		FramesSent:          s.framesSent.Load(),
		FramesReceived:      s.framesReceived.Load(),
		BytesSent:           s.bytesSent.Load(),
		BytesReceived:       s.bytesReceived.Load(),
		ActiveGoroutines:    runtime.NumGoroutine(),
		Uptime:              now.Sub(s.startTime),
		ErrorCount:          s.errorCount.Load(),
		LastError:           lastError,
		RateLimitViolations: s.rateLimitViolations.Load(),
		Timestamp:           now,
	}
}
