// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package echo

import (
	"errors"
	"fmt"

	"github.com/FilipeJohansson/sioecho"
)

const (
	EventText   = "test_text"
	EventBinary = "test_binary"
	EventAck    = "test ack"
)

var (
	ErrUnknownEvent    = errors.New("unknown echo event")
	ErrInvalidInterval = errors.New("report interval must be greater than 0")
)

// Invocation is one decoded echo event: Text, Binary or Combo.
type Invocation interface {
	invocation()
}

// Text is a test_text invocation. Its arguments are not inspected.
type Text struct {
	Args []any
}

// Binary is a test_binary invocation. Attached is false when the first
// argument was not a binary attachment.
type Binary struct {
	Data     []byte
	Attached bool
}

// Combo is a test ack invocation. Object is the first argument when it is a
// JSON object or array, nil otherwise. Ack is nil when the client did not ask
// for an acknowledgement.
type Combo struct {
	Object any
	Ack    *sioecho.Ack
}

func (Text) invocation()   {}
func (Binary) invocation() {}
func (Combo) invocation()  {}

// Decode maps a received event onto its invocation shape.
func Decode(e *sioecho.Event) (Invocation, error) {
	switch e.Name {
	case EventText:
		return Text{Args: e.Args}, nil

	case EventBinary:
		data, ok := e.Binary(0)
		return Binary{Data: data, Attached: ok}, nil

	case EventAck:
		c := Combo{Ack: e.Ack}
		switch v := e.Arg(0).(type) {
		case map[string]any, []any:
			c.Object = v
		}
		return c, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Name)
	}
}
