package rtms

import (
	"errors"
	"fmt"
)

var (
	// ErrHandshakeRejected is wrapped by HandshakeError.
	ErrHandshakeRejected = errors.New("handshake rejected")
	// ErrMissingMediaAddress is returned when a successful signaling ack
	// carries no media server address.
	ErrMissingMediaAddress = errors.New("handshake ack has no media server address")
	// ErrNotConnected is returned by sends issued before the transport is open.
	ErrNotConnected = errors.New("leg is not connected")
	// ErrConnClosed may be returned by Conn implementations after Close.
	ErrConnClosed = errors.New("connection closed")
)

// HandshakeError reports a non-success handshake acknowledgement.
type HandshakeError struct {
	Leg    string
	Status int
	Reason string
}

func (e *HandshakeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s handshake rejected with status %d", e.Leg, e.Status)
	}
	return fmt.Sprintf("%s handshake rejected with status %d: %s", e.Leg, e.Status, e.Reason)
}

func (e *HandshakeError) Unwrap() error { return ErrHandshakeRejected }
