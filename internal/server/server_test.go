package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/summary"
	"github.com/sjawhar/rtms-tutor/internal/vocab"
)

type startCall struct {
	MeetingID, StreamID, URL string
}

type mockController struct {
	mu       sync.Mutex
	starts   []startCall
	stops    []startCall
	sessions []session.Info
	accept   bool
}

func (m *mockController) OnSessionStart(meetingID, streamID, url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, startCall{meetingID, streamID, url})
	return m.accept
}

func (m *mockController) OnSessionStop(meetingID, streamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops = append(m.stops, startCall{MeetingID: meetingID, StreamID: streamID})
	return m.accept
}

func (m *mockController) Sessions() []session.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Info(nil), m.sessions...)
}

type mockExplainer struct{}

func (mockExplainer) Lookup(_ context.Context, text string) vocab.Result {
	return vocab.Result{
		OriginalText: text,
		Explanation:  "explained",
		Translation:  "traducido",
		Terms:        []vocab.Term{{Word: "word", Explanation: "meaning"}},
		Timestamp:    time.Unix(1, 0),
	}
}

type mockStreamer struct {
	chunks []summary.Chunk
}

func (m mockStreamer) StreamSummarize(_ context.Context, _ string, onChunk func(summary.Chunk)) {
	for _, c := range m.chunks {
		onChunk(c)
	}
}

func newTestServer(t *testing.T, opts Options) (*Server, *mockController) {
	t.Helper()
	ctrl, ok := opts.Sessions.(*mockController)
	if !ok {
		ctrl = &mockController{accept: true}
		opts.Sessions = ctrl
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(nil)
	}
	srv := New(opts)
	t.Cleanup(srv.streams.Wait)
	return srv, ctrl
}
