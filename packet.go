// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EngineType is the one digit prefix of every engine frame.
type EngineType byte

const (
	EngineOpen EngineType = iota
	EngineClose
	EnginePing
	EnginePong
	EngineMessage
	EngineUpgrade
	EngineNoop
)

func (t EngineType) String() string {
	switch t {
	case EngineOpen:
		return "open"
	case EngineClose:
		return "close"
	case EnginePing:
		return "ping"
	case EnginePong:
		return "pong"
	case EngineMessage:
		return "message"
	case EngineUpgrade:
		return "upgrade"
	case EngineNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// binaryFramePrefix is written in front of every binary attachment when framing is enabled.
const binaryFramePrefix = byte(EngineMessage)

func encodeEngine(t EngineType, payload string) []byte {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, '0'+byte(t))
	return append(buf, payload...)
}

func decodeEngine(data []byte) (EngineType, string, error) {
	if len(data) == 0 {
		return 0, "", newInvalidFrameError("empty frame")
	}
	c := data[0]
	if c < '0' || c > '0'+byte(EngineNoop) {
		return 0, "", newInvalidFrameError("unknown type " + strconv.QuoteRune(rune(c)))
	}
	return EngineType(c - '0'), string(data[1:]), nil
}

// PacketType is the Socket.IO packet type carried inside an engine message frame.
type PacketType byte

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketError
	PacketBinaryEvent
	PacketBinaryAck
)

func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "connect"
	case PacketDisconnect:
		return "disconnect"
	case PacketEvent:
		return "event"
	case PacketAck:
		return "ack"
	case PacketError:
		return "error"
	case PacketBinaryEvent:
		return "binary_event"
	case PacketBinaryAck:
		return "binary_ack"
	default:
		return "unknown"
	}
}

func (t PacketType) isBinary() bool {
	return t == PacketBinaryEvent || t == PacketBinaryAck
}

const RootNamespace = "/"

// Packet is a decoded Socket.IO packet. ID is -1 when the packet carries no id.
type Packet struct {
	Type        PacketType
	Namespace   string
	ID          int
	Attachments int
	Data        json.RawMessage
}

// Encode renders the packet as <type>[<attachments>-][<nsp>,][<id>][<json>].
func (p *Packet) Encode() string {
	var b strings.Builder
	b.WriteByte('0' + byte(p.Type))

	if p.Type.isBinary() {
		b.WriteString(strconv.Itoa(p.Attachments))
		b.WriteByte('-')
	}

	hasData := len(p.Data) > 0
	if p.Namespace != "" && p.Namespace != RootNamespace {
		b.WriteString(p.Namespace)
		if hasData || p.ID >= 0 {
			b.WriteByte(',')
		}
	}

	if p.ID >= 0 {
		b.WriteString(strconv.Itoa(p.ID))
	}

	if hasData {
		b.Write(p.Data)
	}

	return b.String()
}

// DecodePacket parses the payload of an engine message frame.
func DecodePacket(s string) (*Packet, error) {
	if s == "" {
		return nil, newInvalidPacketError("empty payload")
	}

	p := &Packet{Namespace: RootNamespace, ID: -1}

	c := s[0]
	if c < '0' || c > '0'+byte(PacketBinaryAck) {
		return nil, newInvalidPacketError("unknown type " + strconv.QuoteRune(rune(c)))
	}
	p.Type = PacketType(c - '0')
	i := 1

	if p.Type.isBinary() {
		dash := strings.IndexByte(s[i:], '-')
		if dash < 0 {
			return nil, newInvalidPacketError("missing attachment separator")
		}
		n, err := strconv.Atoi(s[i : i+dash])
		if err != nil || n < 0 {
			return nil, newInvalidPacketError("bad attachment count")
		}
		p.Attachments = n
		i += dash + 1
	}

	if i < len(s) && s[i] == '/' {
		end := strings.IndexByte(s[i:], ',')
		if end < 0 {
			p.Namespace = s[i:]
			return p, nil
		}
		p.Namespace = s[i : i+end]
		i += end + 1
	}

	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > start {
		id, err := strconv.Atoi(s[start:i])
		if err != nil {
			return nil, newInvalidPacketError("bad id")
		}
		p.ID = id
	}

	if i < len(s) {
		data := s[i:]
		if !json.Valid([]byte(data)) {
			return nil, newInvalidPacketError("malformed json")
		}
		p.Data = json.RawMessage(data)
	}

	return p, nil
}
