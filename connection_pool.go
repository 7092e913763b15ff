// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"sync"
)

// ConnectionPool bounds the number of live sessions, in total and per client IP.
// A slot is held from the upgrade until the session closes.
type ConnectionPool struct {
	mu       sync.Mutex
	maxTotal int
	maxPerIP int
	byIP     map[string]int
	active   int
	peak     int
}

func NewConnectionPool(maxTotal, maxPerIP int) *ConnectionPool {
	return &ConnectionPool{
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
		byIP:     make(map[string]int),
	}
}

// Acquire takes a slot for clientIP. The total limit is checked first.
func (cp *ConnectionPool) Acquire(clientIP string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.active >= cp.maxTotal {
		return ErrMaxConnReached
	}
	if cp.byIP[clientIP] >= cp.maxPerIP {
		return newMaxConnPerIpReachedError(clientIP)
	}

	cp.byIP[clientIP]++
	cp.active++
	cp.peak = max(cp.peak, cp.active)
	return nil
}

// Release frees a slot taken by Acquire. Releasing an IP with no active
// session is a no-op.
func (cp *ConnectionPool) Release(clientIP string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	n := cp.byIP[clientIP]
	switch {
	case n == 0:
		return
	case n == 1:
		delete(cp.byIP, clientIP)
	default:
		cp.byIP[clientIP] = n - 1
	}
	cp.active--
}

// Available returns how many sessions can still be admitted.
func (cp *ConnectionPool) Available() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.maxTotal - cp.active
}

// Peak returns the highest number of simultaneous sessions seen.
func (cp *ConnectionPool) Peak() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.peak
}

func (cp *ConnectionPool) GetStats() (total int, perIP map[string]int) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	perIP = make(map[string]int, len(cp.byIP))
	for ip, n := range cp.byIP {
		perIP[ip] = n
	}
	return cp.active, perIP
}
