package rtms

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the message-oriented transport a leg runs on. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a leg transport.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials legs over websockets.
type WSDialer struct {
	HandshakeTimeout time.Duration
	// InsecureSkipVerify disables certificate checks, which some media
	// servers with self-signed certificates require.
	InsecureSkipVerify bool
}

func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: timeout,
	}
	if d.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// isOrderlyClose reports whether a read error is a normal end of stream.
func isOrderlyClose(err error) bool {
	if errors.Is(err, ErrConnClosed) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
