// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"context"
	"sync"
	"sync/atomic"
)

type IHub interface {
	Run(ctx context.Context)
	Stop()
	AddSession(s *Session)
	RemoveSession(s *Session)
	Session(id string) (*Session, bool)
	Sessions() []*Session
	Count() int
	GetStats() map[string]interface{}
	IsRunning() bool
}

// Hub tracks the live sessions of a Handler. Registration goes through the
// run loop so a session is always added before it can be removed.
type Hub struct {
	sessions   *SharedCollection[*Session, string]
	register   chan *Session
	unregister chan *Session
	done       chan struct{}
	stopOnce   sync.Once
	running    atomic.Bool
	logger     *LoggerConfig
}

var _ IHub = (*Hub)(nil)

func NewHub(logger *LoggerConfig) *Hub {
	return &Hub{
		sessions:   NewSharedCollection[*Session, string](),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)
	h.logger.Log(LogTypeServer, LogLevelDebug, "hub started")

	for {
		select {
		case s := <-h.register:
			h.track(s)

		case s := <-h.unregister:
			if h.sessions.Remove(s.ID()) {
				h.logger.Log(LogTypeConnection, LogLevelDebug, "session unregistered: %s (total: %d)", s.ID(), h.sessions.Len())
			}

		case <-ctx.Done():
			h.Stop()
			return

		case <-h.done:
			return
		}
	}
}

// track adds s to the live sessions. A session that lands after Stop has
// cleared the collection is closed here. Exactly one of Stop and track closes it.
func (h *Hub) track(s *Session) {
	h.sessions.Add(s, s.ID())

	select {
	case <-h.done:
		if h.sessions.Remove(s.ID()) {
			h.logger.Log(LogTypeConnection, LogLevelDebug, "session %s registered after stop, closing", s.ID())
			s.Close()
		}
	default:
		h.logger.Log(LogTypeConnection, LogLevelDebug, "session registered: %s (total: %d)", s.ID(), h.sessions.Len())
	}
}

// Stop closes every live session. A stopped hub cannot be restarted.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.logger.Log(LogTypeServer, LogLevelDebug, "hub stopping...")
		close(h.done)

		for _, s := range h.sessions.Clear() {
			s.Close()
		}
	})
}

// AddSession blocks until the run loop has taken the session, or returns
// immediately once the hub is stopped.
func (h *Hub) AddSession(s *Session) {
	select {
	case h.register <- s:
	case <-h.done:
	}
}

func (h *Hub) RemoveSession(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

func (h *Hub) Session(id string) (*Session, bool) {
	return h.sessions.Get(id)
}

func (h *Hub) Sessions() []*Session {
	return h.sessions.Values()
}

func (h *Hub) Count() int {
	return h.sessions.Len()
}

func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

func (h *Hub) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_sessions": h.sessions.Len(),
		"running":        h.IsRunning(),
	}
}
