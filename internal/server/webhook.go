package server

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sjawhar/rtms-tutor/internal/rtms"
)

const (
	eventURLValidation = "endpoint.url_validation"
	eventRTMSStarted   = "meeting.rtms_started"
	eventRTMSStopped   = "meeting.rtms_stopped"

	maxWebhookBody = 1 << 20
)

type webhookRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type urlValidationPayload struct {
	PlainToken string `json:"plainToken"`
}

type rtmsPayload struct {
	MeetingUUID  string `json:"meeting_uuid"`
	RTMSStreamID string `json:"rtms_stream_id"`
	ServerURLs   string `json:"server_urls"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read body")
		return
	}

	if s.webhookSecret != "" && !s.verifyWebhook(r, body) {
		s.logger.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		writeJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	logger := s.logger.With("event", req.Event)

	switch req.Event {
	case eventURLValidation:
		var p urlValidationPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil || p.PlainToken == "" {
			writeJSONError(w, http.StatusBadRequest, "missing plainToken")
			return
		}
		logger.Info("answering url validation")
		writeJSON(w, http.StatusOK, map[string]string{
			"plainToken":     p.PlainToken,
			"encryptedToken": rtms.Sign(s.webhookSecret, p.PlainToken),
		})

	case eventRTMSStarted:
		p, ok := decodeRTMSPayload(req.Payload)
		if !ok || p.ServerURLs == "" {
			writeJSONError(w, http.StatusBadRequest, "incomplete rtms payload")
			return
		}
		started := s.sessions.OnSessionStart(p.MeetingUUID, p.RTMSStreamID, p.ServerURLs)
		logger.Info("rtms started", "meeting_id", p.MeetingUUID, "stream_id", p.RTMSStreamID, "new_session", started)
		writeJSON(w, http.StatusOK, map[string]bool{"started": started})

	case eventRTMSStopped:
		p, ok := decodeRTMSPayload(req.Payload)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "incomplete rtms payload")
			return
		}
		stopped := s.sessions.OnSessionStop(p.MeetingUUID, p.RTMSStreamID)
		logger.Info("rtms stopped", "meeting_id", p.MeetingUUID, "stream_id", p.RTMSStreamID, "was_live", stopped)
		writeJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})

	default:
		logger.Debug("ignoring webhook event")
		w.WriteHeader(http.StatusOK)
	}
}

func decodeRTMSPayload(raw json.RawMessage) (rtmsPayload, bool) {
	var p rtmsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false
	}
	return p, p.MeetingUUID != "" && p.RTMSStreamID != ""
}

// verifyWebhook checks x-zm-signature against
// v0=hex(HMAC-SHA256(secret, "v0:{timestamp}:{body}")).
func (s *Server) verifyWebhook(r *http.Request, body []byte) bool {
	got := r.Header.Get("x-zm-signature")
	ts := r.Header.Get("x-zm-request-timestamp")
	if got == "" || ts == "" {
		return false
	}
	want := "v0=" + rtms.Sign(s.webhookSecret, strings.Join([]string{"v0", ts, string(body)}, ":"))
	return hmac.Equal([]byte(got), []byte(want))
}
