package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/batcher"
	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/summary"
	"github.com/sjawhar/rtms-tutor/internal/vocab"
)

// Hub fans events out to every connected viewer. A slow viewer misses
// messages rather than stalling the producers.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of connected viewers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastVocabulary(res vocab.Result) {
	h.broadcastEvent(VocabularyEvent{
		Event:        newEvent("vocabulary", res.Timestamp),
		OriginalText: res.OriginalText,
		Explanation:  res.Explanation,
		Translation:  res.Translation,
		Terms:        res.Terms,
	})
}

func (h *Hub) BroadcastReview(review batcher.Review) {
	event := ReviewEvent{
		Event:           newEvent("review", review.Timestamp),
		MeetingID:       review.MeetingID,
		Review:          review.Review,
		OriginalContent: review.OriginalContent,
		Fragments:       review.Fragments,
		Fallback:        review.Fallback,
	}
	if !review.WindowStart.IsZero() {
		event.WindowStart = review.WindowStart.UTC().Format(time.RFC3339Nano)
	}
	h.broadcastEvent(event)
}

func (h *Hub) BroadcastStreamChunk(streamID string, chunk summary.Chunk) {
	h.broadcastEvent(StreamingEvent{
		Event:    newEvent("streaming", h.now()),
		StreamID: streamID,
		Chunk:    chunk.Text,
		End:      chunk.End,
		Error:    chunk.Err,
	})
}

func (h *Hub) BroadcastSessionStarted(info session.Info) {
	h.broadcastEvent(SessionStartedEvent{
		Event:   newEvent("session_started", h.now()),
		Session: info,
	})
}

func (h *Hub) BroadcastSessionEnded(info session.Info, reason string) {
	now := h.now()
	var duration time.Duration
	if !info.StartedAt.IsZero() {
		duration = now.Sub(info.StartedAt)
	}
	h.broadcastEvent(SessionEndedEvent{
		Event:    newEvent("session_ended", now),
		Session:  info,
		Reason:   reason,
		Duration: duration.Seconds(),
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event marshal failed", "error", err)
		return
	}
	h.Broadcast(payload)
}

var _ session.EventBroadcaster = (*Hub)(nil)
