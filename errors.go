// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"errors"
	"fmt"
)

var (
	// Server/Handler configuration errors
	ErrMaxConnectionsLessThanOne = errors.New("max connections must be greater than 0")
	ErrMessageSizeLessThanOne    = errors.New("message size must be greater than 0")
	ErrQueueSizeLessThanOne      = errors.New("message channel buffer size must be greater than 0")
	ErrTimeoutsLessThanOne       = errors.New("write timeout must be greater than 0")
	ErrPingPongLessThanOne       = errors.New("ping interval and ping timeout must be greater than 0")
	ErrSSLFilesEmpty             = errors.New("certFile or keyFile is empty")
	ErrWithOnlyServer            = errors.New("can only be set on server")
	ErrInvalidPort               = errors.New("invalid port")
	ErrInvalidNamespace          = errors.New("invalid namespace")
	ErrNilHandlerFunc            = errors.New("handler function is nil")
	ErrInvalidRateLimit          = errors.New("rate limit values must be greater than 0")

	// Connection errors
	ErrMaxConnReached      = errors.New("maximum number of connections reached")
	ErrMaxConnPerIpReached = errors.New("maximum number of connections per ip reached")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrUpgradeFailed       = errors.New("websocket upgrade failed")
	ErrTransportUnknown    = errors.New("transport unknown")
	ErrUnsupportedProtocol = errors.New("unsupported protocol version")
	ErrServerShutdown      = errors.New("server shutdown")

	// Session/Socket errors
	ErrSessionClosed     = errors.New("session is closed")
	ErrSendQueueFull     = errors.New("session send queue is full")
	ErrSocketNotFound    = errors.New("socket not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrAckAlreadySent    = errors.New("ack already sent")
	ErrEmptyEventName    = errors.New("event name cannot be empty")
	ErrReservedEventName = errors.New("event name is reserved")

	// Server errors
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")

	// Handler errors
	ErrSetWriteDeadline = errors.New("failed to set write deadline")
	ErrSetReadDeadline  = errors.New("failed to set read deadline")
	ErrSendMessage      = errors.New("failed to send message")
	ErrEventFailed      = errors.New("event failed")

	// Protocol errors
	ErrInvalidFrame         = errors.New("invalid engine frame")
	ErrInvalidPacket        = errors.New("invalid packet")
	ErrInvalidAttachment    = errors.New("invalid binary attachment")
	ErrUnexpectedBinary     = errors.New("unexpected binary frame")
	ErrUnexpectedText       = errors.New("text frame received while reconstructing a binary packet")
	ErrUnsupportedArgument  = errors.New("unsupported argument type")
	ErrEventPayloadNotArray = errors.New("event payload must be a non-empty array starting with the event name")
)

func newWithOnlyServerError(option string, h HasHandler) error {
	return fmt.Errorf("%s %w, got %T", option, ErrWithOnlyServer, h)
}

func newInvalidPortError(port int) error {
	return fmt.Errorf("%w: %d", ErrInvalidPort, port)
}

func newInvalidNamespaceError(name string) error {
	return fmt.Errorf("%w: %q", ErrInvalidNamespace, name)
}

func newMaxConnPerIpReachedError(ip string) error {
	return fmt.Errorf("%w: %s", ErrMaxConnPerIpReached, ip)
}

func newUpgradeFailedError(err error) error {
	return fmt.Errorf("%w: %w", ErrUpgradeFailed, err)
}

func newUnsupportedProtocolError(version string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedProtocol, version)
}

func newTransportUnknownError(transport string) error {
	return fmt.Errorf("%w: %q", ErrTransportUnknown, transport)
}

func newSetWriteDeadlineError(err error) error {
	return fmt.Errorf("%w: %w", ErrSetWriteDeadline, err)
}

func newSetReadDeadlineError(err error) error {
	return fmt.Errorf("%w: %w", ErrSetReadDeadline, err)
}

func newSendMessageError(err error) error {
	return fmt.Errorf("%w: %w", ErrSendMessage, err)
}

func newEventFailedError(event string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEventFailed, event, err)
}

func newInvalidFrameError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidFrame, reason)
}

func newInvalidPacketError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPacket, reason)
}

func newInvalidAttachmentError(num, available int) error {
	return fmt.Errorf("%w: placeholder %d with %d attachments", ErrInvalidAttachment, num, available)
}

func newUnsupportedArgumentError(err error) error {
	return fmt.Errorf("%w: %w", ErrUnsupportedArgument, err)
}

func newSocketNotFoundError(namespace string) error {
	return fmt.Errorf("%w: %s", ErrSocketNotFound, namespace)
}

func newSessionNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func newReservedEventNameError(name string) error {
	return fmt.Errorf("%w: %s", ErrReservedEventName, name)
}
