package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sjawhar/rtms-tutor/internal/rtms"
)

func postWebhook(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func signedHeaders(secret, ts, body string) map[string]string {
	return map[string]string{
		"x-zm-request-timestamp": ts,
		"x-zm-signature":         "v0=" + rtms.Sign(secret, "v0:"+ts+":"+body),
	}
}

func TestWebhookURLValidation(t *testing.T) {
	srv, _ := newTestServer(t, Options{WebhookSecret: "s3cret"})
	body := `{"event":"endpoint.url_validation","payload":{"plainToken":"abc123"}}`

	rr := postWebhook(t, srv.Handler(), body, signedHeaders("s3cret", "1700000000", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp["plainToken"] != "abc123" {
		t.Fatalf("expected plainToken echoed, got %#v", resp)
	}
	if resp["encryptedToken"] != rtms.Sign("s3cret", "abc123") {
		t.Fatalf("unexpected encryptedToken %q", resp["encryptedToken"])
	}
}

func TestWebhookRTMSStartedStartsSession(t *testing.T) {
	srv, ctrl := newTestServer(t, Options{})
	body := `{"event":"meeting.rtms_started","payload":{"meeting_uuid":"m1","rtms_stream_id":"s1","server_urls":"wss://sig.example/1"}}`

	rr := postWebhook(t, srv.Handler(), body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.starts) != 1 {
		t.Fatalf("expected one start, got %d", len(ctrl.starts))
	}
	want := startCall{MeetingID: "m1", StreamID: "s1", URL: "wss://sig.example/1"}
	if ctrl.starts[0] != want {
		t.Fatalf("unexpected start call %#v", ctrl.starts[0])
	}
}

func TestWebhookRTMSStoppedStopsSession(t *testing.T) {
	srv, ctrl := newTestServer(t, Options{})
	body := `{"event":"meeting.rtms_stopped","payload":{"meeting_uuid":"m1","rtms_stream_id":"s1"}}`

	rr := postWebhook(t, srv.Handler(), body, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.stops) != 1 || ctrl.stops[0].MeetingID != "m1" || ctrl.stops[0].StreamID != "s1" {
		t.Fatalf("unexpected stops %#v", ctrl.stops)
	}
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "started without urls", body: `{"event":"meeting.rtms_started","payload":{"meeting_uuid":"m1","rtms_stream_id":"s1"}}`, want: http.StatusBadRequest},
		{name: "stopped without stream", body: `{"event":"meeting.rtms_stopped","payload":{"meeting_uuid":"m1"}}`, want: http.StatusBadRequest},
		{name: "validation without token", body: `{"event":"endpoint.url_validation","payload":{}}`, want: http.StatusBadRequest},
		{name: "unknown event", body: `{"event":"meeting.started","payload":{}}`, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ctrl := newTestServer(t, Options{})
			rr := postWebhook(t, srv.Handler(), tt.body, nil)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if len(ctrl.starts) != 0 {
				t.Fatalf("no session should start, got %#v", ctrl.starts)
			}
		})
	}
}

func TestWebhookSignatureRequiredWhenSecretSet(t *testing.T) {
	body := `{"event":"meeting.rtms_started","payload":{"meeting_uuid":"m1","rtms_stream_id":"s1","server_urls":"wss://x"}}`

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "missing", headers: nil, want: http.StatusUnauthorized},
		{name: "wrong secret", headers: signedHeaders("other", "1", body), want: http.StatusUnauthorized},
		{name: "tampered timestamp", headers: map[string]string{
			"x-zm-request-timestamp": "2",
			"x-zm-signature":         signedHeaders("s3cret", "1", body)["x-zm-signature"],
		}, want: http.StatusUnauthorized},
		{name: "valid", headers: signedHeaders("s3cret", "1", body), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ctrl := newTestServer(t, Options{WebhookSecret: "s3cret"})
			rr := postWebhook(t, srv.Handler(), body, tt.headers)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			started := len(ctrl.starts) == 1
			if started != (tt.want == http.StatusOK) {
				t.Fatalf("start calls %d for status %d", len(ctrl.starts), rr.Code)
			}
		})
	}
}
