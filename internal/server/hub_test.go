package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/batcher"
	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/summary"
)

func receive(t *testing.T, ch chan []byte) map[string]any {
	t.Helper()
	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		return payload
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for broadcast")
		return nil
	}
}

func TestHubReviewEventShape(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastReview(batcher.Review{
		MeetingID:       "m1",
		Review:          "**Key Vocabulary**: ...",
		OriginalContent: "first second",
		Fragments:       2,
		WindowStart:     time.Unix(100, 0),
		Timestamp:       time.Unix(110, 0),
	})

	payload := receive(t, ch)
	if payload["type"] != "review" {
		t.Fatalf("expected review event, got %#v", payload["type"])
	}
	if payload["meetingId"] != "m1" || payload["originalContent"] != "first second" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload["review"] != "**Key Vocabulary**: ..." {
		t.Fatalf("unexpected review: %#v", payload["review"])
	}
	if _, ok := payload["fallback"]; ok {
		t.Fatalf("fallback should be omitted for a real review: %#v", payload)
	}
}

func TestHubSessionEndedCarriesReasonAndDuration(t *testing.T) {
	hub := NewHub(nil)
	hub.now = func() time.Time { return time.Unix(130, 0) }
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastSessionEnded(session.Info{ID: "abc", MeetingID: "m1", StartedAt: time.Unix(100, 0)}, "stopped")

	payload := receive(t, ch)
	if payload["type"] != "session_ended" {
		t.Fatalf("expected session_ended, got %#v", payload["type"])
	}
	if payload["reason"] != "stopped" {
		t.Fatalf("expected reason stopped, got %#v", payload["reason"])
	}
	if payload["duration"] != float64(30) {
		t.Fatalf("expected 30s duration, got %#v", payload["duration"])
	}
	sess, _ := payload["session"].(map[string]any)
	if sess["meetingId"] != "m1" {
		t.Fatalf("expected nested session info, got %#v", payload["session"])
	}
}

func TestHubStreamChunks(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastStreamChunk("s1", summary.Chunk{Text: "part"})
	hub.BroadcastStreamChunk("s1", summary.Chunk{End: true})

	first := receive(t, ch)
	if first["type"] != "streaming" || first["chunk"] != "part" || first["streamId"] != "s1" {
		t.Fatalf("unexpected first chunk: %#v", first)
	}
	last := receive(t, ch)
	if last["end"] != true {
		t.Fatalf("expected end marker, got %#v", last)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)
	slow := hub.Subscribe()
	defer hub.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Broadcast([]byte(`{}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
	if len(slow) != cap(slow) {
		t.Fatalf("expected buffer to fill to %d, got %d", cap(slow), len(slow))
	}
}

func TestHubUnsubscribeTwice(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}
	hub.Unsubscribe(ch)
	hub.Unsubscribe(ch)
	if hub.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}
