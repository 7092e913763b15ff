package sioecho

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWebSocketConn struct {
	mock.Mock
}

func (m *MockWebSocketConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockWebSocketConn) ReadMessage() (messageType int, p []byte, err error) {
	args := m.Called()
	return args.Int(0), args.Get(1).([]byte), args.Error(2)
}

func (m *MockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	args := m.Called(messageType, data)
	return args.Error(0)
}

func (m *MockWebSocketConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	args := m.Called(messageType, data, deadline)
	return args.Error(0)
}

func (m *MockWebSocketConn) SetReadDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockWebSocketConn) SetWriteDeadline(t time.Time) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockWebSocketConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func newMockSession(t *testing.T, conn IWebSocketConn, options ...UniversalOption) *Session {
	t.Helper()
	h, err := NewHandler(append([]UniversalOption{quiet()}, options...)...)
	require.NoError(t, err)
	h.ensureHubRunning(context.Background())
	t.Cleanup(h.Close)

	s := newSession("test-session", conn, h, NewContext(h), 4)
	h.Hub().AddSession(s)
	return s
}

func TestSession_WriteEnvelope(t *testing.T) {
	conn := &MockWebSocketConn{}
	conn.On("SetWriteDeadline", mock.Anything).Return(nil)
	conn.On("WriteMessage", websocket.TextMessage, []byte(`451-["file",{"_placeholder":true,"num":0}]`)).Return(nil).Once()
	conn.On("WriteMessage", websocket.BinaryMessage, []byte{0x04, 1, 2}).Return(nil).Once()

	s := newMockSession(t, conn)

	p, attachments, err := encodeArgs(PacketEvent, RootNamespace, -1, []any{"file", []byte{1, 2}})
	require.NoError(t, err)
	require.NoError(t, s.sendPacket(p, attachments))

	require.NoError(t, s.write(<-s.send))
	conn.AssertExpectations(t)

	stats := s.handler.Stats()
	assert.Equal(t, uint64(2), stats.FramesSent)
}

func TestSession_WriteErrors(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(conn *MockWebSocketConn)
		expectedErr error
	}{
		{
			name: "write deadline",
			setup: func(conn *MockWebSocketConn) {
				conn.On("SetWriteDeadline", mock.Anything).Return(errors.New("closed"))
			},
			expectedErr: ErrSetWriteDeadline,
		},
		{
			name: "write message",
			setup: func(conn *MockWebSocketConn) {
				conn.On("SetWriteDeadline", mock.Anything).Return(nil)
				conn.On("WriteMessage", websocket.TextMessage, mock.Anything).Return(errors.New("broken pipe"))
			},
			expectedErr: ErrSendMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &MockWebSocketConn{}
			tt.setup(conn)
			s := newMockSession(t, conn)

			err := s.write(envelope{text: []byte("3")})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestSession_WriteLoopSendsCloseFrame(t *testing.T) {
	conn := &MockWebSocketConn{}
	conn.On("SetWriteDeadline", mock.Anything).Return(nil)
	conn.On("WriteMessage", websocket.TextMessage, []byte("3")).Return(nil).Once()
	conn.On("WriteControl", websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), mock.Anything).Return(nil).Once()
	conn.On("Close").Return(nil).Once()

	s := newMockSession(t, conn, WithServerPing(false))
	require.NoError(t, s.sendEngine(EnginePong, ""))

	done := make(chan struct{})
	go func() {
		s.writeLoop()
		close(done)
	}()

	s.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write loop did not stop")
	}
	conn.AssertExpectations(t)
}

func TestSession_ReadLoopReasons(t *testing.T) {
	tests := []struct {
		name           string
		messageType    int
		data           []byte
		err            error
		expectedReason string
		expectedCode   int
	}{
		{
			name:           "client close frame",
			messageType:    websocket.TextMessage,
			data:           []byte("1"),
			expectedReason: "client close",
			expectedCode:   websocket.CloseNormalClosure,
		},
		{
			name:           "read timeout",
			data:           []byte{},
			err:            timeoutError{},
			expectedReason: "ping timeout",
			expectedCode:   websocket.CloseNormalClosure,
		},
		{
			name:           "peer gone",
			data:           []byte{},
			err:            &websocket.CloseError{Code: websocket.CloseNormalClosure},
			expectedReason: "transport close",
			expectedCode:   websocket.CloseNormalClosure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &MockWebSocketConn{}
			conn.On("SetReadDeadline", mock.Anything).Return(nil)
			conn.On("ReadMessage").Return(tt.messageType, tt.data, tt.err).Once()

			s := newMockSession(t, conn)
			s.readLoop()

			assert.True(t, s.IsClosed())
			assert.Equal(t, tt.expectedReason, s.closeReason)
			assert.Equal(t, tt.expectedCode, s.closeCode)
			conn.AssertExpectations(t)
		})
	}
}

func TestSession_HandleFrame(t *testing.T) {
	s := newMockSession(t, &MockWebSocketConn{})

	require.NoError(t, s.handleFrame(websocket.TextMessage, []byte("2probe")))
	assert.Equal(t, "3probe", string((<-s.send).text))

	assert.NoError(t, s.handleFrame(websocket.TextMessage, []byte("3")))
	assert.NoError(t, s.handleFrame(websocket.TextMessage, []byte("6")))
	assert.NoError(t, s.handleFrame(websocket.PingMessage, nil))

	assert.ErrorIs(t, s.handleFrame(websocket.TextMessage, []byte("9")), ErrInvalidFrame)
	assert.ErrorIs(t, s.handleFrame(websocket.BinaryMessage, []byte{4, 1}), ErrUnexpectedBinary)
	assert.ErrorIs(t, s.handleFrame(websocket.TextMessage, []byte(`45300-["e"]`)), ErrInvalidPacket)
	assert.Nil(t, s.pending)
}

func TestSession_TextInterruptsPendingBinary(t *testing.T) {
	var reported []error
	s := newMockSession(t, &MockWebSocketConn{}, OnError(func(_ *Socket, err error, _ *Context) error {
		reported = append(reported, err)
		return nil
	}))

	require.NoError(t, s.handleFrame(websocket.TextMessage, []byte(`451-["e",{"_placeholder":true,"num":0}]`)))
	require.NotNil(t, s.pending)

	require.NoError(t, s.handleFrame(websocket.TextMessage, []byte("3")))
	require.NotNil(t, s.pending)

	err := s.handleFrame(websocket.TextMessage, []byte(`42["e"]`))
	assert.ErrorIs(t, err, ErrSocketNotFound)
	assert.Nil(t, s.pending)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrUnexpectedText)
}

func TestSession_Enqueue(t *testing.T) {
	s := newMockSession(t, &MockWebSocketConn{}, WithMessageChanBufSize(1))

	require.NoError(t, s.sendEngine(EnginePing, ""))
	assert.ErrorIs(t, s.sendEngine(EnginePing, ""), ErrSendQueueFull)

	s.Close()
	assert.ErrorIs(t, s.sendEngine(EnginePing, ""), ErrSessionClosed)
}

func TestSession_ControlPacketsWaitForRoom(t *testing.T) {
	s := newMockSession(t, &MockWebSocketConn{}, WithMessageChanBufSize(1))
	require.NoError(t, s.sendEngine(EngineOpen, "{}"))

	errs := make(chan error, 1)
	go func() {
		errs <- s.sendControl(&Packet{Type: PacketConnect, Namespace: RootNamespace, ID: -1})
	}()

	select {
	case err := <-errs:
		t.Fatalf("connect reply returned before the queue drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, "0{}", string((<-s.send).text))
	require.NoError(t, <-errs)
	assert.Equal(t, "40", string((<-s.send).text))

	require.NoError(t, s.sendEngine(EnginePing, ""))
	go func() {
		errs <- s.sendControl(&Packet{Type: PacketDisconnect, Namespace: RootNamespace, ID: -1})
	}()
	s.Close()
	assert.ErrorIs(t, <-errs, ErrSessionClosed)
}

func TestSession_UsesBinaryPrefix(t *testing.T) {
	tests := []struct {
		name     string
		protocol int
		prefix   bool
		expected bool
	}{
		{name: "eio3 always", protocol: 3, prefix: false, expected: true},
		{name: "eio4 enabled", protocol: 4, prefix: true, expected: true},
		{name: "eio4 disabled", protocol: 4, prefix: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMockSession(t, &MockWebSocketConn{}, WithBinaryFramePrefix(tt.prefix))
			s.protocol = tt.protocol
			assert.Equal(t, tt.expected, s.usesBinaryPrefix())
		})
	}
}
