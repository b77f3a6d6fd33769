package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/batcher"
	"github.com/sjawhar/rtms-tutor/internal/rtms"
)

// sessionState is everything one live session owns. Its lifetime bounds
// both legs, the batcher and the transcriber.
type sessionState struct {
	id        string
	key       Key
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger

	signaling *rtms.SignalingLeg
	batcher   *batcher.Batcher
	explain   rtms.TextSink

	mu          sync.Mutex
	media       *rtms.MediaLeg
	transcriber Transcriber
	retired     bool

	retireOnce sync.Once
}

// setMedia records the media leg unless one exists or the session ended.
func (s *sessionState) setMedia(m *rtms.MediaLeg) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media != nil || s.ctx.Err() != nil {
		return false
	}
	s.media = m
	return true
}

func (s *sessionState) setTranscriber(t Transcriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return false
	}
	s.transcriber = t
	return true
}

func (s *sessionState) closeTranscriber() {
	s.mu.Lock()
	t := s.transcriber
	s.transcriber = nil
	s.retired = true
	s.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			s.logger.Warn("closing transcriber", "error", err)
		}
	}
}

// WriteAudio hands opaque media to the transcriber once it is open. Frames
// that arrive earlier are dropped.
func (s *sessionState) WriteAudio(frame []byte) error {
	s.mu.Lock()
	t := s.transcriber
	s.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.WriteAudio(frame)
}

// AddFragment delivers transcribed text to the same sinks as text payloads.
func (s *sessionState) AddFragment(text string, at time.Time) {
	if s.explain != nil {
		s.explain.Submit(text)
	}
	s.batcher.AddFragment(text, at)
}

func (s *sessionState) info() Info {
	info := Info{
		ID:             s.id,
		MeetingID:      s.key.MeetingID,
		StreamID:       s.key.StreamID,
		StartedAt:      s.startedAt,
		SignalingState: s.signaling.State().String(),
		MediaState:     "pending",
		BatcherState:   s.batcher.State().String(),
	}

	s.mu.Lock()
	media := s.media
	s.mu.Unlock()
	if media != nil {
		info.MediaState = media.State().String()
		info.Fragments = media.Fragments()
		info.OpaqueFrames = media.OpaqueFrames()
	}
	return info
}
