// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import "sync"

type ID interface {
	~uint64 | ~string
}

// SharedCollection is a thread-safe map used for sessions, sockets and pending acks.
type SharedCollection[T any, K ID] struct {
	objectMap map[K]T
	mu        sync.RWMutex
}

func NewSharedCollection[T any, K ID](capacity ...int) *SharedCollection[T, K] {
	size := 0
	if len(capacity) > 0 {
		size = capacity[0]
	}
	return &SharedCollection[T, K]{
		objectMap: make(map[K]T, size),
	}
}

// Add stores obj under id, replacing any previous value.
func (s *SharedCollection[T, K]) Add(obj T, id K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectMap[id] = obj
}

// Remove deletes id and reports whether it was present. Only one of several
// concurrent callers for the same id observes true.
func (s *SharedCollection[T, K]) Remove(id K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objectMap[id]; exists {
		delete(s.objectMap, id)
		return true
	}
	return false
}

// Take removes id and returns its value.
func (s *SharedCollection[T, K]) Take(id K) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objectMap[id]
	if exists {
		delete(s.objectMap, id)
	}
	return obj, exists
}

func (s *SharedCollection[T, K]) Get(id K) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, found := s.objectMap[id]
	return obj, found
}

// GetAll returns a copy of the underlying map.
func (s *SharedCollection[T, K]) GetAll() map[K]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[K]T, len(s.objectMap))
	for k, v := range s.objectMap {
		result[k] = v
	}
	return result
}

func (s *SharedCollection[T, K]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]T, 0, len(s.objectMap))
	for _, v := range s.objectMap {
		values = append(values, v)
	}
	return values
}

func (s *SharedCollection[T, K]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objectMap)
}

// Clear removes every entry and returns what was stored.
func (s *SharedCollection[T, K]) Clear() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]T, 0, len(s.objectMap))
	for k, v := range s.objectMap {
		values = append(values, v)
		delete(s.objectMap, k)
	}
	return values
}
