package sioecho

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeArgs(t *testing.T) {
	tests := []struct {
		name            string
		packetType      PacketType
		values          []any
		expectedType    PacketType
		expectedData    string
		expectedBinary  [][]byte
		expectedEncoded string
	}{
		{
			name:            "plain event",
			packetType:      PacketEvent,
			values:          []any{"test_text", "hello"},
			expectedType:    PacketEvent,
			expectedData:    `["test_text","hello"]`,
			expectedEncoded: `2["test_text","hello"]`,
		},
		{
			name:            "event with nested binary",
			packetType:      PacketEvent,
			values:          []any{"file", map[string]any{"bin": []byte{1, 2, 3}}},
			expectedType:    PacketBinaryEvent,
			expectedData:    `["file",{"bin":{"_placeholder":true,"num":0}}]`,
			expectedBinary:  [][]byte{{1, 2, 3}},
			expectedEncoded: `51-["file",{"bin":{"_placeholder":true,"num":0}}]`,
		},
		{
			name:            "ack with two attachments",
			packetType:      PacketAck,
			values:          []any{[]byte("a"), []any{"x", []byte("b")}},
			expectedType:    PacketBinaryAck,
			expectedData:    `[{"_placeholder":true,"num":0},["x",{"_placeholder":true,"num":1}]]`,
			expectedBinary:  [][]byte{[]byte("a"), []byte("b")},
			expectedEncoded: `62-[{"_placeholder":true,"num":0},["x",{"_placeholder":true,"num":1}]]`,
		},
		{
			name:            "plain ack",
			packetType:      PacketAck,
			values:          []any{"ack response"},
			expectedType:    PacketAck,
			expectedData:    `["ack response"]`,
			expectedEncoded: `3["ack response"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, attachments, err := encodeArgs(tt.packetType, RootNamespace, -1, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedType, p.Type)
			assert.JSONEq(t, tt.expectedData, string(p.Data))
			assert.Equal(t, tt.expectedBinary, attachments)
			assert.Equal(t, len(tt.expectedBinary), p.Attachments)
			assert.Equal(t, tt.expectedEncoded, p.Encode())
		})
	}
}

func TestEncodeArgs_DoesNotMutateInput(t *testing.T) {
	obj := map[string]any{"bin": []byte{9}}
	_, _, err := encodeArgs(PacketEvent, RootNamespace, -1, []any{"e", obj})
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, obj["bin"])
}

func TestEncodeArgs_UnsupportedValue(t *testing.T) {
	_, _, err := encodeArgs(PacketEvent, RootNamespace, -1, []any{"e", make(chan int)})
	assert.ErrorIs(t, err, ErrUnsupportedArgument)
}

func TestDecodeArgs(t *testing.T) {
	data := json.RawMessage(`["bin_event",[{"_placeholder":true,"num":1},{"_placeholder":true,"num":0},"text"]]`)
	attachments := [][]byte{[]byte("zero"), []byte("one")}

	args, err := decodeArgs(data, attachments)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, "bin_event", args[0])

	inner, ok := args[1].([]any)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), inner[0])
	assert.Equal(t, []byte("zero"), inner[1])
	assert.Equal(t, "text", inner[2])
}

func TestDecodeArgs_Errors(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		attachments [][]byte
		expectedErr error
	}{
		{
			name:        "placeholder out of range",
			data:        `["e",{"_placeholder":true,"num":1}]`,
			attachments: [][]byte{{1}},
			expectedErr: ErrInvalidAttachment,
		},
		{
			name:        "negative placeholder",
			data:        `["e",{"_placeholder":true,"num":-1}]`,
			attachments: [][]byte{{1}},
			expectedErr: ErrInvalidAttachment,
		},
		{
			name:        "placeholder without num",
			data:        `["e",{"_placeholder":true}]`,
			expectedErr: ErrInvalidAttachment,
		},
		{
			name:        "not an array",
			data:        `{"e":1}`,
			expectedErr: ErrInvalidPacket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeArgs(json.RawMessage(tt.data), tt.attachments)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestDecodeArgs_PlaceholderFlagFalse(t *testing.T) {
	args, err := decodeArgs(json.RawMessage(`["e",{"_placeholder":false,"num":0}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"_placeholder": false, "num": float64(0)}, args[1])
}
