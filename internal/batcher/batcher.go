// Package batcher collects transcript fragments into rolling windows and
// reviews each window, never running two reviews at once.
package batcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/summary"
)

// DefaultInterval is the review cadence when none is configured.
const DefaultInterval = 10 * time.Second

// State is where the batcher is in its review cycle.
type State int

const (
	// StateIdle means no timer is armed; the next fragment arms one.
	StateIdle State = iota
	StateScheduled
	StateSummarizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateSummarizing:
		return "summarizing"
	default:
		return "unknown"
	}
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Streamer interface {
	StreamSummarize(ctx context.Context, text string, onChunk func(summary.Chunk))
}

// Review is the result of one window.
type Review struct {
	MeetingID       string
	Review          string
	OriginalContent string
	Fragments       int
	WindowStart     time.Time
	Timestamp       time.Time
	// Fallback is set when the review text is the fixed failure message.
	Fallback bool
}

type Config struct {
	MeetingID  string
	Interval   time.Duration
	Summarizer Summarizer
	Streamer   Streamer
	// OnReview receives every review, from the goroutine that ran it.
	OnReview func(Review)
	Clock    Clock
	Logger   *slog.Logger
	// Context bounds review calls. Stop does not cancel it.
	Context context.Context
}

type Batcher struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	window    window
	lastDrain time.Time
	timer     Timer
	stopped   bool

	inflight sync.WaitGroup
}

func New(cfg Config) *Batcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	return &Batcher{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "batcher"),
		lastDrain: cfg.Clock.Now(),
	}
}

// AddFragment appends text to the open window and arms the timer if the
// batcher is idle. It never blocks on a review.
func (b *Batcher) AddFragment(text string, at time.Time) {
	if strings.TrimSpace(text) == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.window.Add(Fragment{Text: text, At: at})
	if b.state == StateIdle {
		b.armLocked()
	}
}

func (b *Batcher) armLocked() {
	b.state = StateScheduled
	b.timer = b.cfg.Clock.AfterFunc(b.cfg.Interval, b.fire)
}

func (b *Batcher) fire() {
	b.mu.Lock()
	if b.stopped || b.state != StateScheduled {
		b.mu.Unlock()
		return
	}
	b.timer = nil

	now := b.cfg.Clock.Now()
	fragments := b.window.Drain()
	start := b.lastDrain
	b.lastDrain = now

	if len(fragments) == 0 {
		b.state = StateIdle
		b.mu.Unlock()
		b.logger.Debug("window empty, batcher dormant")
		return
	}
	b.state = StateSummarizing
	b.inflight.Add(1)
	b.mu.Unlock()

	b.review(fragments, start)
	b.inflight.Done()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		b.state = StateIdle
		return
	}
	b.armLocked()
}

func (b *Batcher) review(fragments []Fragment, start time.Time) {
	text := joinFragments(fragments)
	result := Review{
		MeetingID:       b.cfg.MeetingID,
		OriginalContent: text,
		Fragments:       len(fragments),
		WindowStart:     start,
	}

	var (
		review string
		err    error
	)
	if b.cfg.Summarizer != nil {
		review, err = b.cfg.Summarizer.Summarize(b.cfg.Context, text)
	}
	if err != nil || strings.TrimSpace(review) == "" {
		b.logger.Warn("review failed, using fallback", "fragments", len(fragments), "error", err)
		review = summary.FallbackReview
		result.Fallback = true
	}
	result.Review = review
	result.Timestamp = b.cfg.Clock.Now()

	if b.cfg.OnReview != nil {
		b.cfg.OnReview(result)
	}
}

// StreamSummarize reviews arbitrary text incrementally. It is independent of
// the window cycle and may run alongside it.
func (b *Batcher) StreamSummarize(ctx context.Context, text string, onChunk func(summary.Chunk)) {
	if b.cfg.Streamer == nil {
		onChunk(summary.Chunk{Err: summary.StreamFailure})
		return
	}
	b.cfg.Streamer.StreamSummarize(ctx, text, onChunk)
}

// Stop disarms the timer and drops pending fragments. A review already in
// flight still completes and is delivered.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.window.Drain()
	if b.state == StateScheduled {
		b.state = StateIdle
	}
}

// Wait blocks until no review is in flight.
func (b *Batcher) Wait() {
	b.inflight.Wait()
}

func (b *Batcher) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Pending returns the number of fragments in the open window.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.window.Len()
}
