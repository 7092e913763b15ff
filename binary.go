// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"encoding/json"
)

const placeholderKey = "_placeholder"

// deconstruct returns a copy of v where every []byte is replaced by a
// {"_placeholder":true,"num":N} object. The removed buffers are appended to
// attachments in placeholder order. Values of other types are kept as they are.
func deconstruct(v any, attachments *[][]byte) any {
	switch t := v.(type) {
	case []byte:
		num := len(*attachments)
		*attachments = append(*attachments, t)
		return map[string]any{placeholderKey: true, "num": num}
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deconstruct(item, attachments)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deconstruct(item, attachments)
		}
		return out
	default:
		return v
	}
}

// reconstruct is the inverse of deconstruct, applied to generically decoded JSON.
func reconstruct(v any, attachments [][]byte) (any, error) {
	switch t := v.(type) {
	case []any:
		for i, item := range t {
			r, err := reconstruct(item, attachments)
			if err != nil {
				return nil, err
			}
			t[i] = r
		}
		return t, nil
	case map[string]any:
		if isPlaceholder(t) {
			num, ok := t["num"].(float64)
			if !ok || num < 0 || int(num) >= len(attachments) || num != float64(int(num)) {
				n := -1
				if ok {
					n = int(num)
				}
				return nil, newInvalidAttachmentError(n, len(attachments))
			}
			return attachments[int(num)], nil
		}
		for k, item := range t {
			r, err := reconstruct(item, attachments)
			if err != nil {
				return nil, err
			}
			t[k] = r
		}
		return t, nil
	default:
		return v, nil
	}
}

func isPlaceholder(m map[string]any) bool {
	flag, ok := m[placeholderKey].(bool)
	return ok && flag
}

// encodeArgs builds a packet carrying values as a JSON array, switching to the
// binary packet type when any value holds a []byte.
func encodeArgs(t PacketType, namespace string, id int, values []any) (*Packet, [][]byte, error) {
	var attachments [][]byte
	plain := deconstruct(values, &attachments).([]any)

	data, err := json.Marshal(plain)
	if err != nil {
		return nil, nil, newUnsupportedArgumentError(err)
	}

	p := &Packet{
		Type:      t,
		Namespace: namespace,
		ID:        id,
		Data:      data,
	}

	if len(attachments) > 0 {
		switch t {
		case PacketEvent:
			p.Type = PacketBinaryEvent
		case PacketAck:
			p.Type = PacketBinaryAck
		}
		p.Attachments = len(attachments)
	}

	return p, attachments, nil
}

// decodeArgs unmarshals a packet's JSON array and resolves binary placeholders.
func decodeArgs(data json.RawMessage, attachments [][]byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var values []any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, newInvalidPacketError("payload is not an array")
	}

	if _, err := reconstruct(values, attachments); err != nil {
		return nil, err
	}
	return values, nil
}
