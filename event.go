// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"sync/atomic"
)

// EventHandler is called for every invocation of the event it is registered for.
// A returned error is reported through OnError; it does not close the socket.
type EventHandler func(s *Socket, e *Event) error

type OnConnectFunc func(s *Socket, ctx *Context) error
type OnDisconnectFunc func(s *Socket, reason string, ctx *Context) error
type OnErrorFunc func(s *Socket, err error, ctx *Context) error

// Event is one invocation of a named event sent by a client.
type Event struct {
	Name      string
	Namespace string
	Args      []any
	// Ack is nil unless the client asked for an acknowledgement.
	Ack *Ack
}

func (e *Event) Len() int {
	return len(e.Args)
}

// Arg returns the i-th argument, or nil when it does not exist.
func (e *Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Binary returns the i-th argument when it is a binary attachment.
func (e *Event) Binary(i int) ([]byte, bool) {
	b, ok := e.Arg(i).([]byte)
	return b, ok
}

// Object returns the i-th argument when it is a JSON object.
func (e *Event) Object(i int) (map[string]any, bool) {
	m, ok := e.Arg(i).(map[string]any)
	return m, ok
}

// Text returns the i-th argument when it is a string.
func (e *Event) Text(i int) (string, bool) {
	s, ok := e.Arg(i).(string)
	return s, ok
}

func (e *Event) HasAck() bool {
	return e.Ack != nil
}

// Ack is the response slot of one event invocation. It can be fulfilled once.
type Ack struct {
	id   int
	sent atomic.Bool
	send func(id int, args []any) error
}

// NewAck creates an acknowledgement slot whose first Send calls send.
func NewAck(id int, send func(id int, args []any) error) *Ack {
	return &Ack{id: id, send: send}
}

func (a *Ack) ID() int {
	return a.id
}

// Send delivers the acknowledgement. Only the first successful call reaches
// the client and later calls return ErrAckAlreadySent. When the reply cannot
// be queued the slot stays open and Send may be retried.
func (a *Ack) Send(args ...any) error {
	if !a.sent.CompareAndSwap(false, true) {
		return ErrAckAlreadySent
	}
	if err := a.send(a.id, args); err != nil {
		a.sent.Store(false)
		return err
	}
	return nil
}

func (a *Ack) Sent() bool {
	return a.sent.Load()
}

// reservedEvents cannot be used with Socket.On or Socket.Emit.
var reservedEvents = map[string]struct{}{
	"connect":        {},
	"connect_error":  {},
	"disconnect":     {},
	"disconnecting":  {},
	"newListener":    {},
	"removeListener": {},
}

func isReservedEvent(name string) bool {
	_, ok := reservedEvents[name]
	return ok
}
