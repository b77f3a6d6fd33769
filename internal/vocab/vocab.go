// Package vocab explains and translates every transcript fragment as it
// arrives.
package vocab

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sjawhar/rtms-tutor/internal/llm"
)

const (
	FallbackExplanation = "Unable to explain this passage right now."
	FallbackTranslation = "Unable to translate this passage right now."
)

// Result is the vocabulary help for one fragment.
type Result struct {
	OriginalText string
	Explanation  string
	Translation  string
	Terms        []Term
	Timestamp    time.Time
}

type Config struct {
	Explainer  llm.Client
	Translator llm.Client
	Language   string
	// Concurrency bounds in-flight lookups across all sessions. Fragments
	// submitted while every slot is busy are dropped.
	Concurrency int64
	OnResult    func(Result)
	Logger      *slog.Logger
	Context     context.Context
	Now         func() time.Time
}

type Service struct {
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	dropped atomic.Int64
}

func New(cfg Config) *Service {
	if cfg.Translator == nil {
		cfg.Translator = cfg.Explainer
	}
	if cfg.Language == "" {
		cfg.Language = "Spanish"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "vocab"),
		sem:    semaphore.NewWeighted(cfg.Concurrency),
	}
}

// Submit looks text up in the background and hands the result to OnResult.
// It returns immediately and never queues: when every lookup slot is busy
// the fragment is dropped.
func (s *Service) Submit(text string) {
	if !s.sem.TryAcquire(1) {
		n := s.dropped.Add(1)
		s.logger.Warn("explanation backlog full, dropping fragment", "dropped", n, "chars", len(text))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		result := s.Lookup(s.cfg.Context, text)
		if s.cfg.OnResult != nil {
			s.cfg.OnResult(result)
		}
	}()
}

// Dropped returns how many fragments Submit skipped because all lookup
// slots were busy.
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// Lookup explains and translates text concurrently. Failures become the
// fallback strings; Lookup itself never fails.
func (s *Service) Lookup(ctx context.Context, text string) Result {
	result := Result{OriginalText: text}

	var g errgroup.Group
	g.Go(func() error {
		result.Explanation, result.Terms = s.explain(ctx, text)
		return nil
	})
	g.Go(func() error {
		result.Translation = s.translate(ctx, text)
		return nil
	})
	_ = g.Wait()

	result.Timestamp = s.cfg.Now()
	return result
}

func (s *Service) explain(ctx context.Context, text string) (string, []Term) {
	if s.cfg.Explainer == nil {
		return FallbackExplanation, nil
	}
	raw, err := s.cfg.Explainer.Complete(ctx, explainPrompt(text))
	if err != nil {
		s.logger.Warn("explanation failed", "error", err)
		return FallbackExplanation, nil
	}

	terms, err := parseTerms(raw)
	if err != nil {
		s.logger.Debug("explanation was not a term list", "error", err)
		return stripFences(raw), nil
	}
	return formatTerms(terms), terms
}

func (s *Service) translate(ctx context.Context, text string) string {
	if s.cfg.Translator == nil {
		return FallbackTranslation
	}
	translated, err := s.cfg.Translator.Complete(ctx, translatePrompt(text, s.cfg.Language))
	if err != nil {
		s.logger.Warn("translation failed", "error", err)
		return FallbackTranslation
	}
	return translated
}

// Wait blocks until every submitted lookup finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
