package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/summary"
)

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPIHealth(t *testing.T) {
	ctrl := &mockController{sessions: []session.Info{{ID: "a"}, {ID: "b"}}}
	srv, _ := newTestServer(t, Options{Sessions: ctrl})

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "ok" || body["sessions"] != float64(2) {
		t.Fatalf("unexpected health payload %#v", body)
	}
}

func TestAPISessionsList(t *testing.T) {
	started := time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)
	ctrl := &mockController{sessions: []session.Info{{
		ID:             "s1",
		MeetingID:      "m1",
		StreamID:       "st1",
		StartedAt:      started,
		SignalingState: "ready",
		MediaState:     "streaming",
		BatcherState:   "scheduled",
		Fragments:      3,
	}}}
	srv, _ := newTestServer(t, Options{Sessions: ctrl})

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/sessions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content type, got %q", got)
	}

	var got []session.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 1 || got[0].MediaState != "streaming" || !got[0].StartedAt.Equal(started) {
		t.Fatalf("unexpected sessions %#v", got)
	}
}

func TestAPIExplain(t *testing.T) {
	srv, _ := newTestServer(t, Options{Explainer: mockExplainer{}})

	rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/explain", `{"text":"  la reunión  "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["originalText"] != "la reunión" {
		t.Fatalf("expected trimmed text, got %#v", body["originalText"])
	}
	if body["translation"] != "traducido" || body["type"] != "vocabulary" {
		t.Fatalf("unexpected payload %#v", body)
	}
	terms, _ := body["terms"].([]any)
	if len(terms) != 1 {
		t.Fatalf("expected one term, got %#v", body["terms"])
	}
}

func TestAPIExplainValidation(t *testing.T) {
	tests := []struct {
		name      string
		explainer Explainer
		body      string
		want      int
	}{
		{name: "blank text", explainer: mockExplainer{}, body: `{"text":"   "}`, want: http.StatusBadRequest},
		{name: "bad json", explainer: mockExplainer{}, body: `nope`, want: http.StatusBadRequest},
		{name: "not configured", explainer: nil, body: `{"text":"hi"}`, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, Options{Explainer: tt.explainer})
			rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/explain", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestAPIStreamSummaryFansChunksToViewers(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	streamer := mockStreamer{chunks: []summary.Chunk{{Text: "Key "}, {Text: "Vocabulary"}, {End: true}}}
	srv, _ := newTestServer(t, Options{Hub: hub, Streamer: streamer})

	rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/summaries/stream", `{"text":"hello"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp["streamId"] == "" {
		t.Fatal("expected a stream id")
	}

	var text strings.Builder
	for i := 0; i < 3; i++ {
		payload := receive(t, ch)
		if payload["type"] != "streaming" || payload["streamId"] != resp["streamId"] {
			t.Fatalf("unexpected event %#v", payload)
		}
		if c, ok := payload["chunk"].(string); ok {
			text.WriteString(c)
		}
		if i == 2 && payload["end"] != true {
			t.Fatalf("expected final end chunk, got %#v", payload)
		}
	}
	if text.String() != "Key Vocabulary" {
		t.Fatalf("unexpected streamed text %q", text.String())
	}
}

func TestAPIStreamSummaryNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := doRequest(t, srv.Handler(), http.MethodPost, "/api/summaries/stream", `{"text":"hello"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestAPITestBroadcast(t *testing.T) {
	hub := NewHub(nil)
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	srv, _ := newTestServer(t, Options{Hub: hub})

	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/test-broadcast", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := receive(t, ch)
	if payload["type"] != "vocabulary" || payload["originalText"] == "" {
		t.Fatalf("unexpected sample event %#v", payload)
	}
}

func TestAPIUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := doRequest(t, srv.Handler(), http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
