// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

// Package echo answers the three test events used by Socket.IO client test
// suites: test_text, test_binary and "test ack".
package echo

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/FilipeJohansson/sioecho"
)

// Variant selects the acknowledgement sent for "test ack".
type Variant int

const (
	// VariantConstant acknowledges with ConstantResponse.
	VariantConstant Variant = iota
	// VariantBinaryLength acknowledges with "Got bin length:<N>", N being the
	// length of the "bin" field of the object.
	VariantBinaryLength
)

const (
	ConstantResponse     = "ack response"
	binaryLengthResponse = "Got bin length:"
)

type Option func(*Server)

func WithVariant(v Variant) Option {
	return func(s *Server) {
		s.variant = v
	}
}

// WithLogger sets where the echo lines are written. Lines are logged with
// type event at level info.
func WithLogger(l sioecho.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

type Server struct {
	variant Variant
	logger  sioecho.Logger
}

func New(opts ...Option) *Server {
	s := &Server{
		variant: VariantConstant,
		logger:  sioecho.NewDefaultLogger(os.Stdout),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Variant() Variant {
	return s.variant
}

// Option installs the echo handlers on the root namespace of a handler or server.
func (s *Server) Option() sioecho.UniversalOption {
	return sioecho.OnConnect(s.OnConnect)
}

// OnConnect registers the echo handlers on a freshly connected socket.
func (s *Server) OnConnect(sock *sioecho.Socket, ctx *sioecho.Context) error {
	s.log("new connection")

	for _, name := range []string{EventText, EventBinary, EventAck} {
		if err := sock.On(name, s.handleEvent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleEvent(_ *sioecho.Socket, e *sioecho.Event) error {
	inv, err := Decode(e)
	if err != nil {
		return err
	}
	return s.Handle(inv)
}

// Handle runs one invocation.
func (s *Server) Handle(inv Invocation) error {
	switch v := inv.(type) {
	case Text:
		s.log("test text event received.")
		return nil

	case Binary:
		if v.Attached {
			s.log("test binary event received,binary length:%d", len(v.Data))
		}
		return nil

	case Combo:
		if v.Object != nil {
			s.log("test combo received,object:%s", describe(v.Object))
		}
		if v.Ack == nil {
			return nil
		}
		s.log("need ack for test combo")
		return v.Ack.Send(s.AckResponse(v.Object))

	default:
		return fmt.Errorf("unsupported invocation %T", inv)
	}
}

// AckResponse returns the acknowledgement payload for the object of a combo.
// VariantBinaryLength falls back to ConstantResponse when the object has no
// usable "bin" field.
func (s *Server) AckResponse(object any) string {
	if s.variant != VariantBinaryLength {
		return ConstantResponse
	}

	m, ok := object.(map[string]any)
	if !ok {
		return ConstantResponse
	}

	var n int
	switch bin := m["bin"].(type) {
	case []byte:
		n = len(bin)
	case []any:
		n = len(bin)
	case string:
		n = len(bin)
	default:
		return ConstantResponse
	}
	return binaryLengthResponse + strconv.Itoa(n)
}

func (s *Server) log(msg string, args ...any) {
	s.logger.Log(sioecho.LogTypeEvent, sioecho.LogLevelInfo, msg, args...)
}

// describe renders v as JSON with binary attachments shown by length.
func describe(v any) string {
	b, err := json.Marshal(summarize(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func summarize(v any) any {
	switch t := v.(type) {
	case []byte:
		return fmt.Sprintf("<binary %d bytes>", len(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = summarize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = summarize(item)
		}
		return out
	default:
		return v
	}
}
