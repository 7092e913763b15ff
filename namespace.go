// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"errors"
	"strings"
	"sync"
)

// Namespace groups the sockets connected under one name, "/" being the root.
type Namespace struct {
	name         string
	onConnect    OnConnectFunc
	onDisconnect OnDisconnectFunc
	sockets      *SharedCollection[*Socket, string]
	mu           sync.RWMutex
}

func NewNamespace(name string) *Namespace {
	return &Namespace{
		name:    name,
		sockets: NewSharedCollection[*Socket, string](),
	}
}

func validNamespace(name string) bool {
	return strings.HasPrefix(name, "/") && !strings.ContainsAny(name, ",?")
}

func (n *Namespace) Name() string {
	return n.name
}

// OnConnect sets the callback run when a socket joins the namespace. Event
// handlers registered from it are in place before any event is dispatched.
func (n *Namespace) OnConnect(fn OnConnectFunc) *Namespace {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onConnect = fn
	return n
}

func (n *Namespace) OnDisconnect(fn OnDisconnectFunc) *Namespace {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDisconnect = fn
	return n
}

func (n *Namespace) Sockets() map[string]*Socket {
	return n.sockets.GetAll()
}

func (n *Namespace) Socket(id string) (*Socket, bool) {
	return n.sockets.Get(id)
}

func (n *Namespace) Count() int {
	return n.sockets.Len()
}

// Emit sends the event to every socket of the namespace.
func (n *Namespace) Emit(event string, args ...any) error {
	var errs []error
	for _, s := range n.sockets.Values() {
		if err := s.Emit(event, args...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Namespace) add(s *Socket) {
	n.sockets.Add(s, s.id)
}

func (n *Namespace) remove(s *Socket) bool {
	return n.sockets.Remove(s.id)
}

func (n *Namespace) connect(s *Socket, ctx *Context) error {
	n.mu.RLock()
	fn := n.onConnect
	n.mu.RUnlock()

	if fn == nil {
		return nil
	}
	return fn(s, ctx)
}

func (n *Namespace) disconnect(s *Socket, reason string, ctx *Context) error {
	n.mu.RLock()
	fn := n.onDisconnect
	n.mu.RUnlock()

	if fn == nil {
		return nil
	}
	return fn(s, reason, ctx)
}
