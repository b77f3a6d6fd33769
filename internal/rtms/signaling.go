package rtms

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

// SignalingConfig configures the first-stage connection of a session.
type SignalingConfig struct {
	MeetingID   string
	StreamID    string
	URL         string
	Credentials Credentials
	Dialer      Dialer
	Logger      *slog.Logger

	// OnMediaAddress is called once, from the read loop, after a successful
	// handshake acknowledgement. It must not block.
	OnMediaAddress func(address string)
}

// SignalingLeg performs the signaling handshake, discovers the media server
// and relays keepalives.
type SignalingLeg struct {
	leg
	cfg SignalingConfig
}

func NewSignalingLeg(cfg SignalingConfig) *SignalingLeg {
	l := &SignalingLeg{cfg: cfg}
	l.setup("signaling", cfg.Logger)
	return l
}

// Run blocks until the leg closes or fails.
func (l *SignalingLeg) Run(ctx context.Context) error {
	return l.run(ctx, l.cfg.Dialer, l.cfg.URL, l.sendHandshake, l.handle)
}

// NotifyMediaReady tells the upstream service that the media leg is
// streaming so that payload delivery begins.
func (l *SignalingLeg) NotifyMediaReady() error {
	if err := l.send(clientReadyAck{MsgType: MsgClientReadyAck, StreamID: l.cfg.StreamID}); err != nil {
		return fmt.Errorf("notify media ready: %w", err)
	}
	l.logger.Info("media start acknowledged upstream")
	return nil
}

func (l *SignalingLeg) sendHandshake() error {
	return l.send(signalingHandshake{
		MsgType:         MsgSignalingHandshakeReq,
		ProtocolVersion: ProtocolVersion,
		MeetingUUID:     l.cfg.MeetingID,
		StreamID:        l.cfg.StreamID,
		Sequence:        rand.Uint32(),
		Signature:       l.cfg.Credentials.Signature(l.cfg.MeetingID, l.cfg.StreamID),
	})
}

func (l *SignalingLeg) handle(_ int, payload []byte) error {
	msg, ok := decodeInbound(payload)
	if !ok {
		l.logger.Warn("ignoring unparseable signaling message", "bytes", len(payload))
		return nil
	}

	switch msg.MsgType {
	case MsgSignalingHandshakeResp:
		return l.handleHandshakeAck(msg)
	case MsgKeepaliveReq:
		return l.replyKeepalive(int64(msg.Timestamp))
	default:
		l.logger.Debug("signaling message", "msg_type", msg.MsgType)
		return nil
	}
}

func (l *SignalingLeg) handleHandshakeAck(msg inbound) error {
	if l.State() != StateAwaitingHandshakeAck {
		l.logger.Debug("ignoring repeated handshake ack", "state", l.State().String())
		return nil
	}
	if msg.StatusCode != StatusOK {
		return &HandshakeError{Leg: "signaling", Status: int(msg.StatusCode), Reason: msg.Reason}
	}

	address := msg.mediaAddress()
	if address == "" {
		return fmt.Errorf("signaling: %w", ErrMissingMediaAddress)
	}

	l.transition(StateReady)
	if l.cfg.OnMediaAddress != nil {
		l.cfg.OnMediaAddress(address)
	}
	return nil
}
