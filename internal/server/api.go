package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/rtms-tutor/internal/summary"
	"github.com/sjawhar/rtms-tutor/internal/vocab"
)

const maxTextBody = 64 << 10

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  "rtms-tutor",
		"sessions": len(s.sessions.Sessions()),
		"viewers":  s.hub.Subscribers(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Sessions())
}

func (s *Server) handleTestBroadcast(w http.ResponseWriter, r *http.Request) {
	s.hub.BroadcastVocabulary(vocab.Result{
		OriginalText: "This is a test message from the server.",
		Explanation:  "A test message checks that the dashboard receives live events.",
		Translation:  "Este es un mensaje de prueba del servidor.",
		Terms: []vocab.Term{
			{Word: "dashboard", Explanation: "A screen that shows live information at a glance."},
		},
		Timestamp: time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "broadcast sent",
		"viewers": s.hub.Subscribers(),
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	text, ok := readText(w, r)
	if !ok {
		return
	}
	if s.explainer == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "explanation is not configured")
		return
	}

	res := s.explainer.Lookup(r.Context(), text)
	writeJSON(w, http.StatusOK, VocabularyEvent{
		Event:        newEvent("vocabulary", res.Timestamp),
		OriginalText: res.OriginalText,
		Explanation:  res.Explanation,
		Translation:  res.Translation,
		Terms:        res.Terms,
	})
}

// handleStreamSummary accepts the text and streams the review to viewers
// after the response is sent.
func (s *Server) handleStreamSummary(w http.ResponseWriter, r *http.Request) {
	text, ok := readText(w, r)
	if !ok {
		return
	}
	if s.streamer == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "summaries are not configured")
		return
	}

	streamID := uuid.NewString()
	logger := s.logger.With("summary_stream", streamID)

	s.streams.Add(1)
	go func() {
		defer s.streams.Done()
		logger.Info("streaming summary", "chars", len(text))
		s.streamer.StreamSummarize(s.ctx, text, func(chunk summary.Chunk) {
			if chunk.Err != "" {
				logger.Warn("summary stream failed", "error", chunk.Err)
			}
			s.hub.BroadcastStreamChunk(streamID, chunk)
		})
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"streamId": streamID})
}

func readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req textRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return "", false
	}
	return text, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
