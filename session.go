// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// maxAttachments caps the attachment count a client may announce for one packet.
const maxAttachments = 256

// envelope is one outbound packet. Its frames are written back to back so the
// attachments of a binary packet are never interleaved with another packet.
type envelope struct {
	text     []byte
	binaries [][]byte
}

type pendingPacket struct {
	packet      *Packet
	attachments [][]byte
}

type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// Session is one engine connection. It multiplexes a socket per connected
// namespace over a single websocket.
type Session struct {
	id       string
	conn     IWebSocketConn
	handler  *Handler
	ctx      *Context
	protocol int

	send chan envelope
	done chan struct{}

	closeOnce   sync.Once
	closeReason string
	closeCode   int

	sockets *SharedCollection[*Socket, string]

	// owned by the read loop
	pending    *pendingPacket
	violations int
}

func newSession(id string, conn IWebSocketConn, h *Handler, ctx *Context, protocol int) *Session {
	return &Session{
		id:       id,
		conn:     conn,
		handler:  h,
		ctx:      ctx,
		protocol: protocol,
		send:     make(chan envelope, h.config.MessageChanBufSize),
		done:     make(chan struct{}),
		sockets:  NewSharedCollection[*Socket, string](),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Protocol returns the engine protocol revision negotiated with the client (3 or 4).
func (s *Session) Protocol() int {
	return s.protocol
}

func (s *Session) Context() *Context {
	return s.ctx
}

func (s *Session) Socket(namespace string) (*Socket, bool) {
	return s.sockets.Get(namespace)
}

func (s *Session) Sockets() []*Socket {
	return s.sockets.Values()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close disconnects every socket of the session and closes the websocket.
func (s *Session) Close() {
	s.close("server shutting down", websocket.CloseGoingAway)
}

func (s *Session) close(reason string, code int) {
	s.closeOnce.Do(func() {
		s.closeReason = reason
		s.closeCode = code
		close(s.done)

		for _, sock := range s.sockets.Values() {
			s.removeSocket(sock.namespace.name, reason, true)
		}

		s.ctx.Cancel()
		s.handler.sessionClosed(s, reason)
	})
}

func (s *Session) usesBinaryPrefix() bool {
	return s.protocol == 3 || s.handler.config.BinaryFramePrefix
}

func (s *Session) enqueue(env envelope) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- env:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrSendQueueFull
	}
}

// enqueueWait is enqueue for handshake frames: it waits for room in the queue
// instead of failing, so a namespace connect is never dropped.
func (s *Session) enqueueWait(env envelope) error {
	select {
	case s.send <- env:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

func (s *Session) sendEngine(t EngineType, payload string) error {
	return s.enqueue(envelope{text: encodeEngine(t, payload)})
}

func (s *Session) sendPacket(p *Packet, attachments [][]byte) error {
	return s.enqueue(s.packetEnvelope(p, attachments))
}

// sendControl queues a connect, disconnect or error packet.
func (s *Session) sendControl(p *Packet) error {
	return s.enqueueWait(s.packetEnvelope(p, nil))
}

func (s *Session) packetEnvelope(p *Packet, attachments [][]byte) envelope {
	env := envelope{text: encodeEngine(EngineMessage, p.Encode())}
	for _, a := range attachments {
		if s.usesBinaryPrefix() {
			framed := make([]byte, 0, len(a)+1)
			framed = append(framed, binaryFramePrefix)
			a = append(framed, a...)
		}
		env.binaries = append(env.binaries, a)
	}
	return env
}

func (s *Session) sendError(namespace, message string) error {
	data, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	return s.sendControl(&Packet{Type: PacketError, Namespace: namespace, ID: -1, Data: data})
}

// open queues the handshake and, when enabled, connects the root namespace
// without waiting for the client to ask. The write loop must be running.
func (s *Session) open() error {
	cfg := s.handler.config
	payload, err := json.Marshal(openPayload{
		SID:          s.id,
		Upgrades:     []string{},
		PingInterval: cfg.PingInterval.Milliseconds(),
		PingTimeout:  cfg.PingTimeout.Milliseconds(),
		MaxPayload:   cfg.MessageSize,
	})
	if err != nil {
		return err
	}
	if err := s.enqueueWait(envelope{text: encodeEngine(EngineOpen, string(payload))}); err != nil {
		return err
	}

	if cfg.AutoConnect {
		s.connectNamespace(RootNamespace, nil, false)
	}
	return nil
}

func (s *Session) connectNamespace(name string, auth json.RawMessage, explicit bool) {
	h := s.handler

	ns, ok := h.namespace(name)
	if !ok {
		h.log(LogTypeClient, LogLevelWarn, "%s tried to connect to unknown namespace %s", s.id, name)
		if err := s.sendError(name, "Invalid namespace"); err != nil {
			h.reportError(nil, err, s.ctx)
		}
		return
	}

	if sock, exists := s.sockets.Get(name); exists {
		if err := s.sendConnect(sock, true); err != nil {
			h.reportError(sock, err, s.ctx)
		}
		return
	}

	sock := newSocket(s, ns)
	if len(auth) > 0 {
		var a map[string]any
		if err := json.Unmarshal(auth, &a); err == nil {
			sock.auth = a
		}
	}
	s.sockets.Add(sock, name)
	ns.add(sock)

	if err := s.sendConnect(sock, explicit); err != nil {
		h.reportError(sock, err, s.ctx)
	}

	if err := ns.connect(sock, s.ctx); err != nil {
		h.reportError(sock, newEventFailedError("connect", err), s.ctx)
		_ = s.sendControl(&Packet{Type: PacketDisconnect, Namespace: name, ID: -1})
		s.removeSocket(name, "server namespace disconnect", false)
		return
	}

	h.log(LogTypeClient, LogLevelInfo, "socket %s connected to %s (session %s)", sock.id, name, s.id)
}

func (s *Session) sendConnect(sock *Socket, withSID bool) error {
	p := &Packet{Type: PacketConnect, Namespace: sock.namespace.name, ID: -1}
	if withSID {
		data, err := json.Marshal(map[string]string{"sid": sock.id})
		if err != nil {
			return err
		}
		p.Data = data
	}
	return s.sendControl(p)
}

// removeSocket detaches the socket of a namespace. Only the first caller for a
// given socket runs OnDisconnect.
func (s *Session) removeSocket(name, reason string, notify bool) {
	sock, ok := s.sockets.Take(name)
	if !ok {
		return
	}
	sock.namespace.remove(sock)
	sock.markDisconnected()

	s.handler.log(LogTypeClient, LogLevelInfo, "socket %s left %s: %s", sock.id, name, reason)
	if !notify {
		return
	}
	if err := sock.namespace.disconnect(sock, reason, s.ctx); err != nil {
		s.handler.reportError(sock, newEventFailedError("disconnect", err), s.ctx)
	}
}

func (s *Session) readLoop() {
	h := s.handler
	reason, code := "transport close", websocket.CloseNormalClosure

	defer func() {
		if r := recover(); r != nil {
			h.log(LogTypeError, LogLevelError, "PANIC in read loop of %s: %v", s.id, r)
			reason, code = "server error", websocket.CloseInternalServerErr
		}
		s.close(reason, code)
	}()

	for !s.IsClosed() {
		if err := s.conn.SetReadDeadline(time.Now().Add(h.config.PingInterval + h.config.PingTimeout)); err != nil {
			h.reportError(nil, newSetReadDeadlineError(err), s.ctx)
			return
		}

		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			reason = readErrorReason(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log(LogTypeConnection, LogLevelDebug, "%s read error: %v", s.id, err)
			}
			return
		}
		h.stats.frameReceived(len(data))

		if h.rateLimiter != nil && !h.rateLimiter.AllowSession(s.id) {
			s.violations++
			h.stats.rateLimitViolations.Add(1)
			h.log(LogTypeRateLimit, LogLevelWarn, "%s exceeded its frame rate (%d/%d)", s.id, s.violations, h.rateLimitConfig.MaxRateLimitViolations)
			if s.violations >= h.rateLimitConfig.MaxRateLimitViolations {
				reason, code = ErrRateLimitExceeded.Error(), websocket.CloseTryAgainLater
				return
			}
			continue
		}

		if err := s.handleFrame(messageType, data); err != nil {
			h.reportError(nil, err, s.ctx)
		}
	}
}

func readErrorReason(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ping timeout"
	}
	return "transport close"
}

func (s *Session) handleFrame(messageType int, data []byte) error {
	switch messageType {
	case websocket.BinaryMessage:
		return s.handleAttachment(data)
	case websocket.TextMessage:
	default:
		return nil
	}

	t, payload, err := decodeEngine(data)
	if err != nil {
		return err
	}
	s.handler.log(LogTypeMessage, LogLevelDebug, "%s received %s frame: %s", s.id, t, payload)

	switch t {
	case EnginePing:
		return s.sendEngine(EnginePong, payload)
	case EngineClose:
		s.close("client close", websocket.CloseNormalClosure)
		return nil
	case EngineMessage:
		return s.handlePacket(payload)
	default:
		// pong only refreshes the read deadline; open, upgrade and noop are ignored
		return nil
	}
}

func (s *Session) handlePacket(payload string) error {
	if s.pending != nil {
		s.pending = nil
		s.handler.reportError(nil, ErrUnexpectedText, s.ctx)
	}

	p, err := DecodePacket(payload)
	if err != nil {
		return err
	}

	if p.Type.isBinary() && p.Attachments > 0 {
		if p.Attachments > maxAttachments {
			return newInvalidPacketError("too many attachments")
		}
		s.pending = &pendingPacket{packet: p, attachments: make([][]byte, 0, p.Attachments)}
		return nil
	}
	return s.dispatch(p, nil)
}

func (s *Session) handleAttachment(data []byte) error {
	if s.pending == nil {
		return ErrUnexpectedBinary
	}

	if s.usesBinaryPrefix() && len(data) > 0 && data[0] == binaryFramePrefix {
		data = data[1:]
	}
	s.pending.attachments = append(s.pending.attachments, data)
	if len(s.pending.attachments) < s.pending.packet.Attachments {
		return nil
	}

	p, attachments := s.pending.packet, s.pending.attachments
	s.pending = nil
	return s.dispatch(p, attachments)
}

func (s *Session) dispatch(p *Packet, attachments [][]byte) error {
	switch p.Type {
	case PacketConnect:
		s.connectNamespace(p.Namespace, p.Data, true)
		return nil

	case PacketDisconnect:
		s.removeSocket(p.Namespace, "client namespace disconnect", true)
		return nil

	case PacketEvent, PacketBinaryEvent:
		return s.dispatchEvent(p, attachments)

	case PacketAck, PacketBinaryAck:
		sock, ok := s.sockets.Get(p.Namespace)
		if !ok {
			return newSocketNotFoundError(p.Namespace)
		}
		args, err := decodeArgs(p.Data, attachments)
		if err != nil {
			return err
		}
		if !sock.resolveAck(p.ID, args) {
			s.handler.log(LogTypeEvent, LogLevelDebug, "unknown ack %d on %s", p.ID, p.Namespace)
		}
		return nil

	default:
		s.handler.log(LogTypeClient, LogLevelWarn, "%s sent %s packet on %s: %s", s.id, p.Type, p.Namespace, p.Data)
		return nil
	}
}

func (s *Session) dispatchEvent(p *Packet, attachments [][]byte) error {
	h := s.handler

	sock, ok := s.sockets.Get(p.Namespace)
	if !ok {
		return newSocketNotFoundError(p.Namespace)
	}

	args, err := decodeArgs(p.Data, attachments)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return ErrEventPayloadNotArray
	}
	name, ok := args[0].(string)
	if !ok {
		return ErrEventPayloadNotArray
	}

	event := &Event{Name: name, Namespace: p.Namespace, Args: args[1:]}
	if p.ID >= 0 {
		event.Ack = NewAck(p.ID, sock.sendAck)
	}

	h.stats.eventsReceived.Add(1)
	h.log(LogTypeEvent, LogLevelDebug, "event %q on %s from %s (args: %d, ack: %t)", name, p.Namespace, sock.id, len(event.Args), event.HasAck())

	if err := sock.dispatch(event); err != nil {
		h.reportError(sock, err, s.ctx)
	}
	return nil
}

func (s *Session) writeLoop() {
	h := s.handler

	var pingC <-chan time.Time
	if h.config.ServerPing && s.protocol >= 4 {
		ticker := time.NewTicker(h.config.PingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	defer func() {
		if r := recover(); r != nil {
			h.log(LogTypeError, LogLevelError, "PANIC in write loop of %s: %v", s.id, r)
		}
		_ = s.conn.Close()
		s.close("transport error", websocket.CloseInternalServerErr)
	}()

	for {
		select {
		case <-s.done:
			s.flush()
			msg := websocket.FormatCloseMessage(s.closeCode, s.closeReason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.config.WriteTimeout))
			return

		case env := <-s.send:
			if err := s.write(env); err != nil {
				h.reportError(nil, err, s.ctx)
				return
			}

		case <-pingC:
			if err := s.writeFrame(websocket.TextMessage, encodeEngine(EnginePing, "")); err != nil {
				h.reportError(nil, err, s.ctx)
				return
			}
		}
	}
}

// flush writes what is still queued once the session is closing.
func (s *Session) flush() {
	for {
		select {
		case env := <-s.send:
			if err := s.write(env); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(env envelope) error {
	if err := s.writeFrame(websocket.TextMessage, env.text); err != nil {
		return err
	}
	for _, b := range env.binaries {
		if err := s.writeFrame(websocket.BinaryMessage, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) writeFrame(messageType int, data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.handler.config.WriteTimeout)); err != nil {
		return newSetWriteDeadlineError(err)
	}
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return newSendMessageError(err)
	}

	s.handler.stats.frameSent(len(data))
	if messageType == websocket.BinaryMessage {
		s.handler.log(LogTypeMessage, LogLevelDebug, "%s sent binary frame (%d bytes)", s.id, len(data))
	} else {
		s.handler.log(LogTypeMessage, LogLevelDebug, "%s sent: %s", s.id, data)
	}
	return nil
}
