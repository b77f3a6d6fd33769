package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/rtms-tutor/internal/batcher"
	"github.com/sjawhar/rtms-tutor/internal/config"
	"github.com/sjawhar/rtms-tutor/internal/llm"
	"github.com/sjawhar/rtms-tutor/internal/rtms"
	"github.com/sjawhar/rtms-tutor/internal/server"
	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/summary"
	"github.com/sjawhar/rtms-tutor/internal/transcribe"
	"github.com/sjawhar/rtms-tutor/internal/vocab"
)

const shutdownTimeout = 10 * time.Second

func runServe(parent context.Context, cfg config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(logger)

	var (
		summarizer batcher.Summarizer
		streamer   batcher.Streamer
		reviews    *summary.Summarizer
	)
	if c := openLLM(cfg.Model, cfg.LLMAPIKey, logger); c != nil {
		reviews = summary.New(c, logger.With("component", "summary"))
		summarizer, streamer = reviews, reviews
	}

	vocabSvc := vocab.New(vocab.Config{
		Explainer:   openLLM(cfg.ExplainModelRef(), cfg.LLMAPIKey, logger),
		Language:    cfg.TranslateLanguage,
		Concurrency: int64(cfg.ExplainConcurrency),
		OnResult:    hub.BroadcastVocabulary,
		Logger:      logger.With("component", "vocab"),
		Context:     ctx,
	})

	orchestrator := session.New(session.Config{
		Credentials: rtms.Credentials{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret},
		Dialer: rtms.WSDialer{
			HandshakeTimeout:   cfg.ParsedDialTimeout(),
			InsecureSkipVerify: cfg.InsecureMediaTLS,
		},
		MediaType:      cfg.MediaType,
		Explain:        vocabSvc,
		Summarizer:     summarizer,
		Streamer:       streamer,
		ReviewInterval: cfg.ParsedReviewInterval(),
		Hub:            hub,
		Transcriber:    deepgramTranscriber(cfg, logger),
		Logger:         logger,
	})

	srv := server.New(server.Options{
		Addr:          cfg.ListenAddr,
		Hub:           hub,
		Sessions:      orchestrator,
		Explainer:     vocabSvc,
		Streamer:      apiStreamer(reviews),
		WebhookSecret: cfg.ZoomSecretToken,
		Logger:        logger,
		Context:       ctx,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := orchestrator.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// apiStreamer keeps a missing summarizer a nil interface so the streaming
// endpoint reports it as unconfigured.
func apiStreamer(s *summary.Summarizer) server.Streamer {
	if s == nil {
		return nil
	}
	return s
}

// openLLM builds a client or returns nil, in which case callers fall back
// to their fixed texts.
func openLLM(ref, apiKey string, logger *slog.Logger) llm.Client {
	if apiKey == "" {
		return nil
	}
	c, err := llm.Open(ref, apiKey)
	if err != nil {
		logger.Warn("llm client unavailable", "model", ref, "error", err)
		return nil
	}
	return c
}

func deepgramTranscriber(cfg config.Config, logger *slog.Logger) session.TranscriberFactory {
	if cfg.DeepgramAPIKey == "" {
		return nil
	}
	client.Init(client.InitLib{LogLevel: client.LogLevelDefault})

	return func(ctx context.Context, key session.Key, onFragment func(string, time.Time)) (session.Transcriber, error) {
		stream, err := transcribe.Dial(ctx, transcribe.Options{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.Deepgram.Model,
			Language:   cfg.Deepgram.Language,
			Encoding:   cfg.Deepgram.Encoding,
			SampleRate: cfg.Deepgram.SampleRate,
			OnFragment: onFragment,
			Logger:     logger.With("meeting_id", key.MeetingID, "stream_id", key.StreamID),
		})
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}
