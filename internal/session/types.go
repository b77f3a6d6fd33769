package session

import (
	"context"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/batcher"
	"github.com/sjawhar/rtms-tutor/internal/rtms"
)

// Key identifies one live relay session.
type Key struct {
	MeetingID string
	StreamID  string
}

// Info describes a live session for viewers and the API.
type Info struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meetingId"`
	StreamID       string    `json:"streamId"`
	StartedAt      time.Time `json:"startedAt"`
	SignalingState string    `json:"signalingState"`
	MediaState     string    `json:"mediaState"`
	BatcherState   string    `json:"batcherState"`
	Fragments      int64     `json:"fragments"`
	OpaqueFrames   int64     `json:"opaqueFrames"`
}

type EventBroadcaster interface {
	BroadcastSessionStarted(info Info)
	BroadcastSessionEnded(info Info, reason string)
	BroadcastReview(review batcher.Review)
}

// Transcriber turns a session's opaque media frames into fragments.
type Transcriber interface {
	rtms.AudioSink
	Close() error
}

// TranscriberFactory opens a transcriber for one session. onFragment must be
// called for every recognized utterance.
type TranscriberFactory func(ctx context.Context, key Key, onFragment func(text string, at time.Time)) (Transcriber, error)
