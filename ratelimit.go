// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter interface {
	// AllowSession is consulted once per inbound frame.
	AllowSession(sessionID string) bool
	// AllowIP is consulted once per upgrade request.
	AllowIP(ip string) bool
	Forget(sessionID string)
	Stop()
}

// RateLimiterManager keeps one token bucket per session and one per client IP.
// Idle buckets are dropped after EntryTTL.
type RateLimiterManager struct {
	config RateLimiterConfig

	sessionsMu sync.Mutex
	sessions   map[string]*limiterEntry

	ipsMu sync.Mutex
	ips   map[string]*limiterEntry

	quit     chan struct{}
	stopOnce sync.Once
}

var _ RateLimiter = (*RateLimiterManager)(nil)

func NewRateLimiterManager(config RateLimiterConfig) *RateLimiterManager {
	rl := &RateLimiterManager{
		config:   config,
		sessions: make(map[string]*limiterEntry),
		ips:      make(map[string]*limiterEntry),
		quit:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (r *RateLimiterManager) AllowSession(sessionID string) bool {
	return allow(&r.sessionsMu, r.sessions, sessionID, r.config.PerClientRate, r.config.PerClientBurst)
}

func (r *RateLimiterManager) AllowIP(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	return allow(&r.ipsMu, r.ips, ip, r.config.PerIPRate, r.config.PerIPBurst)
}

func allow(mu *sync.Mutex, entries map[string]*limiterEntry, key string, limit float64, burst int) bool {
	mu.Lock()
	entry, ok := entries[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(limit), burst),
		}
		entries[key] = entry
	}
	entry.lastSeen = time.Now()
	lim := entry.limiter
	mu.Unlock()

	return lim.Allow()
}

// Forget drops the bucket of a closed session.
func (r *RateLimiterManager) Forget(sessionID string) {
	r.sessionsMu.Lock()
	delete(r.sessions, sessionID)
	r.sessionsMu.Unlock()
}

func (r *RateLimiterManager) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}

func (r *RateLimiterManager) cleanupLoop() {
	t := time.NewTicker(r.config.CleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			r.cleanup(time.Now())
		case <-r.quit:
			return
		}
	}
}

func (r *RateLimiterManager) cleanup(now time.Time) {
	threshold := now.Add(-r.config.EntryTTL)

	r.sessionsMu.Lock()
	for k, v := range r.sessions {
		if v.lastSeen.Before(threshold) {
			delete(r.sessions, k)
		}
	}
	r.sessionsMu.Unlock()

	r.ipsMu.Lock()
	for k, v := range r.ips {
		if v.lastSeen.Before(threshold) {
			delete(r.ips, k)
		}
	}
	r.ipsMu.Unlock()
}

func (r *RateLimiterManager) size() (sessions, ips int) {
	r.sessionsMu.Lock()
	sessions = len(r.sessions)
	r.sessionsMu.Unlock()

	r.ipsMu.Lock()
	ips = len(r.ips)
	r.ipsMu.Unlock()
	return sessions, ips
}
