package rtms

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ReadyNotifier is the signaling side of the start/ready exchange.
type ReadyNotifier interface {
	NotifyMediaReady() error
}

// TextSink receives every text fragment for on-demand explanation. Submit
// must return without waiting for the external call.
type TextSink interface {
	Submit(text string)
}

// FragmentSink receives every text fragment with its arrival time.
type FragmentSink interface {
	AddFragment(text string, at time.Time)
}

// AudioSink receives opaque media frames. WriteAudio must not block.
type AudioSink interface {
	WriteAudio(frame []byte) error
}

// MediaConfig configures the second-stage connection of a session.
type MediaConfig struct {
	MeetingID   string
	StreamID    string
	URL         string
	MediaType   int
	Credentials Credentials
	Dialer      Dialer
	Logger      *slog.Logger

	Signaling ReadyNotifier
	Explain   TextSink
	Fragments FragmentSink
	Audio     AudioSink

	Now func() time.Time
}

// MediaLeg performs the media handshake, acknowledges readiness to the
// signaling leg and forwards payloads.
type MediaLeg struct {
	leg
	cfg MediaConfig

	fragments    atomic.Int64
	opaqueFrames atomic.Int64
}

func NewMediaLeg(cfg MediaConfig) *MediaLeg {
	if cfg.MediaType == 0 {
		cfg.MediaType = MediaTypeTranscript
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &MediaLeg{cfg: cfg}
	l.setup("media", cfg.Logger)
	return l
}

// Run blocks until the leg closes or fails.
func (l *MediaLeg) Run(ctx context.Context) error {
	return l.run(ctx, l.cfg.Dialer, l.cfg.URL, l.sendHandshake, l.handle)
}

// Fragments returns how many text payloads were forwarded.
func (l *MediaLeg) Fragments() int64 { return l.fragments.Load() }

// OpaqueFrames returns how many unstructured frames were received.
func (l *MediaLeg) OpaqueFrames() int64 { return l.opaqueFrames.Load() }

func (l *MediaLeg) sendHandshake() error {
	return l.send(mediaHandshake{
		MsgType:           MsgMediaHandshakeReq,
		ProtocolVersion:   ProtocolVersion,
		MeetingUUID:       l.cfg.MeetingID,
		StreamID:          l.cfg.StreamID,
		Signature:         l.cfg.Credentials.Signature(l.cfg.MeetingID, l.cfg.StreamID),
		MediaType:         l.cfg.MediaType,
		PayloadEncryption: false,
	})
}

// handle never fails on a payload it cannot parse. Unstructured bytes are
// the raw media path.
func (l *MediaLeg) handle(messageType int, payload []byte) error {
	if messageType == websocket.BinaryMessage {
		l.forwardOpaque(payload)
		return nil
	}

	msg, ok := decodeInbound(payload)
	if !ok {
		if looksLikeObject(payload) {
			l.logger.Warn("ignoring unparseable media control message", "bytes", len(payload))
			return nil
		}
		l.forwardOpaque(payload)
		return nil
	}

	switch msg.MsgType {
	case MsgMediaHandshakeResp:
		return l.handleHandshakeAck(msg)
	case MsgKeepaliveReq:
		return l.replyKeepalive(int64(msg.Timestamp))
	}

	if text := msg.text(); text != "" {
		if l.State() != StateStreaming {
			l.logger.Debug("dropping content before media start", "state", l.State().String(), "chars", len(text))
			return nil
		}
		l.forwardText(text)
		return nil
	}
	l.logger.Debug("media message", "msg_type", msg.MsgType)
	return nil
}

func (l *MediaLeg) handleHandshakeAck(msg inbound) error {
	if l.State() != StateAwaitingHandshakeAck {
		l.logger.Debug("ignoring repeated handshake ack", "state", l.State().String())
		return nil
	}
	if msg.StatusCode != StatusOK {
		return &HandshakeError{Leg: "media", Status: int(msg.StatusCode), Reason: msg.Reason}
	}

	l.transition(StateStreaming)
	if l.cfg.Signaling != nil {
		if err := l.cfg.Signaling.NotifyMediaReady(); err != nil {
			l.logger.Warn("could not acknowledge media start", "error", err)
		}
	}
	return nil
}

func (l *MediaLeg) forwardText(text string) {
	at := l.cfg.Now()
	l.fragments.Add(1)

	if l.cfg.Explain != nil {
		l.cfg.Explain.Submit(text)
	}
	if l.cfg.Fragments != nil {
		l.cfg.Fragments.AddFragment(text, at)
	}
}

func (l *MediaLeg) forwardOpaque(frame []byte) {
	n := l.opaqueFrames.Add(1)
	if l.cfg.Audio == nil {
		if n == 1 || n%500 == 0 {
			l.logger.Debug("dropping opaque media frames", "frames", n, "bytes", len(frame))
		}
		return
	}
	if err := l.cfg.Audio.WriteAudio(frame); err != nil {
		l.logger.Warn("audio sink rejected frame", "error", err)
	}
}
