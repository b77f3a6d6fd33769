package rtms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// State is the lifecycle position of one leg.
type State int

const (
	StateConnecting State = iota
	StateAwaitingHandshakeAck
	StateReady     // signaling leg: handshake done, media address known
	StateStreaming // media leg: handshake done, payloads flowing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshakeAck:
		return "awaiting_handshake_ack"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// leg holds what the signaling and media legs share: the state machine,
// a write-serialized connection and the read loop.
type leg struct {
	name   string
	logger *slog.Logger

	mu    sync.Mutex
	state State

	writeMu sync.Mutex
	conn    Conn
}

func (l *leg) setup(name string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.name = name
	l.logger = logger.With("leg", name)
}

// State returns the current leg state.
func (l *leg) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// transition moves to next unless the leg already reached a terminal state.
func (l *leg) transition(next State) {
	l.mu.Lock()
	prev := l.state
	if prev.Terminal() || prev == next {
		l.mu.Unlock()
		return
	}
	l.state = next
	l.mu.Unlock()

	l.logger.Info("leg state changed", "from", prev.String(), "to", next.String())
}

func (l *leg) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode message: %w", l.name, err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.conn == nil {
		return ErrNotConnected
	}
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%s: write message: %w", l.name, err)
	}
	return nil
}

func (l *leg) replyKeepalive(timestamp int64) error {
	if err := l.send(KeepaliveReply(timestamp)); err != nil {
		return fmt.Errorf("keepalive reply: %w", err)
	}
	l.logger.Debug("answered keepalive", "timestamp", timestamp)
	return nil
}

// run dials url, calls open once the transport is up, then feeds every
// inbound message to handle in arrival order. Cancelling ctx closes the
// transport. A nil return means the leg closed in an orderly way.
func (l *leg) run(
	ctx context.Context,
	dialer Dialer,
	url string,
	open func() error,
	handle func(messageType int, payload []byte) error,
) error {
	conn, err := dialer.Dial(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			l.transition(StateClosed)
			return nil
		}
		l.transition(StateFailed)
		return fmt.Errorf("%s: %w", l.name, err)
	}

	l.writeMu.Lock()
	l.conn = conn
	l.writeMu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	if err := open(); err != nil {
		if ctx.Err() != nil {
			l.transition(StateClosed)
			return nil
		}
		l.transition(StateFailed)
		return fmt.Errorf("%s: send handshake: %w", l.name, err)
	}
	l.transition(StateAwaitingHandshakeAck)

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || isOrderlyClose(err) {
				l.transition(StateClosed)
				return nil
			}
			l.transition(StateFailed)
			return fmt.Errorf("%s: read: %w", l.name, err)
		}

		if err := handle(messageType, payload); err != nil {
			l.transition(StateFailed)
			return err
		}
	}
}
