// Package session maps session-start notifications to signaling and media
// leg pairs and owns their lifecycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/rtms-tutor/internal/batcher"
	"github.com/sjawhar/rtms-tutor/internal/rtms"
)

type Config struct {
	Credentials rtms.Credentials
	Dialer      rtms.Dialer
	MediaType   int

	// Explain receives every fragment of every session.
	Explain        rtms.TextSink
	Summarizer     batcher.Summarizer
	Streamer       batcher.Streamer
	ReviewInterval time.Duration
	// Clock drives the review timers; nil means wall time.
	Clock batcher.Clock

	Hub         EventBroadcaster
	Transcriber TranscriberFactory
	Logger      *slog.Logger
}

type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[Key]*sessionState
	closed   bool
	wg       sync.WaitGroup
}

func New(cfg Config) *Orchestrator {
	if cfg.Dialer == nil {
		cfg.Dialer = rtms.WSDialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[Key]*sessionState),
	}
}

// OnSessionStart opens the signaling leg for a new session. A start for a
// session that is already live is ignored and reports false.
func (o *Orchestrator) OnSessionStart(meetingID, streamID, signalingURL string) bool {
	key := Key{MeetingID: meetingID, StreamID: streamID}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.logger.Warn("ignoring session start", "meeting_id", meetingID, "stream_id", streamID, "error", ErrShuttingDown)
		return false
	}
	if _, ok := o.sessions[key]; ok {
		o.mu.Unlock()
		o.logger.Info("duplicate session start ignored", "meeting_id", meetingID, "stream_id", streamID)
		return false
	}

	st := o.newSession(key, signalingURL)
	o.sessions[key] = st
	o.wg.Add(1)
	o.mu.Unlock()

	st.logger.Info("session started", "signaling_url", signalingURL)
	if o.cfg.Hub != nil {
		o.cfg.Hub.BroadcastSessionStarted(st.info())
	}

	go func() {
		defer o.wg.Done()
		o.runLeg(st, st.signaling)
	}()
	return true
}

// OnSessionStop closes both legs of a live session. It reports false when
// no such session exists.
func (o *Orchestrator) OnSessionStop(meetingID, streamID string) bool {
	key := Key{MeetingID: meetingID, StreamID: streamID}

	o.mu.Lock()
	st, ok := o.sessions[key]
	o.mu.Unlock()
	if !ok {
		o.logger.Debug("stop for unknown session", "meeting_id", meetingID, "stream_id", streamID)
		return false
	}

	o.retire(st, "stopped")
	return true
}

// Sessions lists live sessions ordered by start time.
func (o *Orchestrator) Sessions() []Info {
	o.mu.Lock()
	states := make([]*sessionState, 0, len(o.sessions))
	for _, st := range o.sessions {
		states = append(states, st)
	}
	o.mu.Unlock()

	infos := make([]Info, len(states))
	for i, st := range states {
		infos[i] = st.info()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}

// Shutdown retires every session and refuses new ones. It waits for all
// legs to close or for ctx to end. In-flight reviews are not waited for.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	states := make([]*sessionState, 0, len(o.sessions))
	for _, st := range o.sessions {
		states = append(states, st)
	}
	o.mu.Unlock()

	for _, st := range states {
		o.retire(st, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for legs: %w", ctx.Err())
	}
}

func (o *Orchestrator) newSession(key Key, signalingURL string) *sessionState {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	logger := o.logger.With("session_id", id, "meeting_id", key.MeetingID, "stream_id", key.StreamID)

	st := &sessionState{
		id:        id,
		key:       key,
		startedAt: time.Now().UTC(),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		explain:   o.cfg.Explain,
	}

	var onReview func(batcher.Review)
	if o.cfg.Hub != nil {
		onReview = o.cfg.Hub.BroadcastReview
	}
	st.batcher = batcher.New(batcher.Config{
		MeetingID:  key.MeetingID,
		Interval:   o.cfg.ReviewInterval,
		Summarizer: o.cfg.Summarizer,
		Streamer:   o.cfg.Streamer,
		OnReview:   onReview,
		Clock:      o.cfg.Clock,
		Logger:     logger,
	})

	st.signaling = rtms.NewSignalingLeg(rtms.SignalingConfig{
		MeetingID:   key.MeetingID,
		StreamID:    key.StreamID,
		URL:         signalingURL,
		Credentials: o.cfg.Credentials,
		Dialer:      o.cfg.Dialer,
		Logger:      logger,
		OnMediaAddress: func(address string) {
			o.startMedia(st, address)
		},
	})
	return st
}

// startMedia runs on the signaling read loop, so everything slow happens on
// new goroutines.
func (o *Orchestrator) startMedia(st *sessionState, address string) {
	media := rtms.NewMediaLeg(rtms.MediaConfig{
		MeetingID:   st.key.MeetingID,
		StreamID:    st.key.StreamID,
		URL:         address,
		MediaType:   o.cfg.MediaType,
		Credentials: o.cfg.Credentials,
		Dialer:      o.cfg.Dialer,
		Logger:      st.logger,
		Signaling:   st.signaling,
		Explain:     st.explain,
		Fragments:   st.batcher,
		Audio:       st,
	})
	if !st.setMedia(media) {
		return
	}
	st.logger.Info("media leg created", "media_url", address)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runLeg(st, media)
	}()

	if o.cfg.Transcriber != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.openTranscriber(st)
		}()
	}
}

func (o *Orchestrator) openTranscriber(st *sessionState) {
	t, err := o.cfg.Transcriber(st.ctx, st.key, st.AddFragment)
	if err != nil {
		st.logger.Warn("transcription unavailable", "error", err)
		return
	}
	if !st.setTranscriber(t) {
		_ = t.Close()
	}
}

type runner interface {
	Run(ctx context.Context) error
	State() rtms.State
}

func (o *Orchestrator) runLeg(st *sessionState, leg runner) {
	err := leg.Run(st.ctx)
	reason := "closed"
	if err != nil {
		reason = "failed"
		st.logger.Warn("leg failed", "state", leg.State().String(), "error", err)
	}
	o.retire(st, reason)
}

// retire tears a session down exactly once, whichever leg or caller gets
// there first.
func (o *Orchestrator) retire(st *sessionState, reason string) {
	st.retireOnce.Do(func() {
		st.cancel()

		o.mu.Lock()
		if o.sessions[st.key] == st {
			delete(o.sessions, st.key)
		}
		o.mu.Unlock()

		st.batcher.Stop()
		st.closeTranscriber()

		info := st.info()
		st.logger.Info("session retired", "reason", reason, "fragments", info.Fragments)
		if o.cfg.Hub != nil {
			o.cfg.Hub.BroadcastSessionEnded(info, reason)
		}
	})
}
