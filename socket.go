// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"sync"
	"sync/atomic"
)

// ISocket is the server side view of one client connected to one namespace.
type ISocket interface {
	// ID returns the socket id, which is distinct from the session id.
	ID() string

	// Namespace returns the name of the namespace the socket is connected to.
	Namespace() string

	// On registers the handler for a named event, replacing any previous one.
	On(event string, handler EventHandler) error

	// Off removes the handler for a named event.
	Off(event string)

	// Emit sends a named event to the client. []byte values anywhere in args
	// travel as binary attachments.
	Emit(event string, args ...any) error

	// EmitWithAck sends a named event and calls callback with the arguments the
	// client acknowledges it with.
	EmitWithAck(event string, callback func(args []any), args ...any) error

	// Disconnect removes the socket from its namespace. The underlying session
	// stays open for other namespaces.
	Disconnect() error

	// IsConnected reports whether the socket is still attached to its namespace.
	IsConnected() bool

	// SetUserData stores arbitrary data on the socket.
	SetUserData(key string, value interface{})

	// GetUserData returns data stored with SetUserData.
	GetUserData(key string) interface{}
}

type Socket struct {
	id        string
	session   *Session
	namespace *Namespace
	auth      map[string]any

	handlers map[string]EventHandler
	mu       sync.RWMutex

	acks      *SharedCollection[func([]any), uint64]
	ackSeq    atomic.Uint64
	connected atomic.Bool

	UserData map[string]interface{}
	dataMu   sync.RWMutex
}

var _ ISocket = (*Socket)(nil)

func newSocket(session *Session, namespace *Namespace) *Socket {
	s := &Socket{
		id:        newSessionID(),
		session:   session,
		namespace: namespace,
		handlers:  make(map[string]EventHandler),
		acks:      NewSharedCollection[func([]any), uint64](),
		UserData:  make(map[string]interface{}),
	}
	s.connected.Store(true)
	return s
}

func (s *Socket) ID() string {
	return s.id
}

// SessionID returns the id of the engine session carrying this socket.
func (s *Socket) SessionID() string {
	return s.session.ID()
}

func (s *Socket) Namespace() string {
	return s.namespace.name
}

// Auth returns the payload the client sent with its namespace connect packet.
// It is nil for the root namespace when it was connected automatically.
func (s *Socket) Auth() map[string]any {
	return s.auth
}

func (s *Socket) Context() *Context {
	return s.session.ctx
}

func (s *Socket) On(event string, handler EventHandler) error {
	if event == "" {
		return ErrEmptyEventName
	}
	if isReservedEvent(event) {
		return newReservedEventNameError(event)
	}
	if handler == nil {
		return ErrNilHandlerFunc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
	return nil
}

func (s *Socket) Off(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
}

func (s *Socket) Emit(event string, args ...any) error {
	return s.emit(event, -1, args)
}

func (s *Socket) EmitWithAck(event string, callback func(args []any), args ...any) error {
	if callback == nil {
		return ErrNilHandlerFunc
	}

	id := s.ackSeq.Add(1) - 1
	s.acks.Add(callback, id)
	if err := s.emit(event, int(id), args); err != nil {
		s.acks.Remove(id)
		return err
	}
	return nil
}

func (s *Socket) emit(event string, id int, args []any) error {
	if event == "" {
		return ErrEmptyEventName
	}
	if isReservedEvent(event) {
		return newReservedEventNameError(event)
	}
	if !s.IsConnected() {
		return ErrSessionClosed
	}

	values := make([]any, 0, len(args)+1)
	values = append(values, event)
	values = append(values, args...)

	p, attachments, err := encodeArgs(PacketEvent, s.namespace.name, id, values)
	if err != nil {
		return err
	}
	if err := s.session.sendPacket(p, attachments); err != nil {
		return err
	}

	s.session.handler.stats.emitsSent.Add(1)
	return nil
}

// sendAck is the transport behind Ack.Send.
func (s *Socket) sendAck(id int, args []any) error {
	if !s.IsConnected() {
		return ErrSessionClosed
	}
	if args == nil {
		args = []any{}
	}

	p, attachments, err := encodeArgs(PacketAck, s.namespace.name, id, args)
	if err != nil {
		return err
	}
	if err := s.session.sendPacket(p, attachments); err != nil {
		return err
	}

	s.session.handler.stats.acksSent.Add(1)
	s.session.handler.log(LogTypeEvent, LogLevelDebug, "ack %d sent to %s%s", id, s.id, s.namespace.name)
	return nil
}

// resolveAck runs the callback registered by EmitWithAck for id, at most once.
func (s *Socket) resolveAck(id int, args []any) bool {
	if id < 0 {
		return false
	}
	callback, ok := s.acks.Take(uint64(id))
	if !ok {
		return false
	}
	callback(args)
	return true
}

func (s *Socket) dispatch(e *Event) error {
	s.mu.RLock()
	handler := s.handlers[e.Name]
	s.mu.RUnlock()

	if handler == nil {
		s.session.handler.log(LogTypeEvent, LogLevelDebug, "no handler for event %q on %s", e.Name, s.namespace.name)
		return nil
	}

	if err := handler(s, e); err != nil {
		return newEventFailedError(e.Name, err)
	}
	return nil
}

func (s *Socket) Disconnect() error {
	if !s.IsConnected() {
		return ErrSessionClosed
	}

	err := s.session.sendPacket(&Packet{Type: PacketDisconnect, Namespace: s.namespace.name, ID: -1}, nil)
	s.session.removeSocket(s.namespace.name, "server namespace disconnect", true)
	return err
}

func (s *Socket) IsConnected() bool {
	return s.connected.Load()
}

func (s *Socket) markDisconnected() {
	s.connected.Store(false)
	s.acks.Clear()
}

func (s *Socket) SetUserData(key string, value interface{}) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.UserData[key] = value
}

func (s *Socket) GetUserData(key string) interface{} {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.UserData[key]
}
