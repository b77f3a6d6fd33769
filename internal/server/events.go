package server

import (
	"time"

	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/vocab"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type VocabularyEvent struct {
	Event
	OriginalText string       `json:"originalText"`
	Explanation  string       `json:"explanation"`
	Translation  string       `json:"translation"`
	Terms        []vocab.Term `json:"terms,omitempty"`
}

type ReviewEvent struct {
	Event
	MeetingID       string `json:"meetingId"`
	Review          string `json:"review"`
	OriginalContent string `json:"originalContent"`
	Fragments       int    `json:"fragments"`
	WindowStart     string `json:"windowStart,omitempty"`
	Fallback        bool   `json:"fallback,omitempty"`
}

type StreamingEvent struct {
	Event
	StreamID string `json:"streamId"`
	Chunk    string `json:"chunk,omitempty"`
	End      bool   `json:"end,omitempty"`
	Error    string `json:"error,omitempty"`
}

type SessionStartedEvent struct {
	Event
	Session session.Info `json:"session"`
}

type SessionEndedEvent struct {
	Event
	Session  session.Info `json:"session"`
	Reason   string       `json:"reason"`
	Duration float64      `json:"duration"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
