// Package server is the viewer-facing surface: the event hub, the viewer
// websocket, the session-start webhook and a small JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sjawhar/rtms-tutor/internal/session"
	"github.com/sjawhar/rtms-tutor/internal/summary"
	"github.com/sjawhar/rtms-tutor/internal/vocab"
)

// SessionController starts and stops relay sessions. *session.Orchestrator
// satisfies it.
type SessionController interface {
	OnSessionStart(meetingID, streamID, signalingURL string) bool
	OnSessionStop(meetingID, streamID string) bool
	Sessions() []session.Info
}

type Explainer interface {
	Lookup(ctx context.Context, text string) vocab.Result
}

type Streamer interface {
	StreamSummarize(ctx context.Context, text string, onChunk func(summary.Chunk))
}

type Options struct {
	Addr     string
	Hub      *Hub
	Sessions SessionController
	// Explainer and Streamer are optional; their endpoints answer 503
	// without them.
	Explainer Explainer
	Streamer  Streamer
	// WebhookSecret answers URL validation and, when set, is required to
	// sign every webhook request.
	WebhookSecret string
	Logger        *slog.Logger
	// Context bounds work that outlives a request, such as streamed
	// summaries.
	Context context.Context
}

type Server struct {
	hub           *Hub
	sessions      SessionController
	explainer     Explainer
	streamer      Streamer
	webhookSecret string
	logger        *slog.Logger
	ctx           context.Context

	router  chi.Router
	http    *http.Server
	streams sync.WaitGroup
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}

	srv := &Server{
		hub:           opts.Hub,
		sessions:      opts.Sessions,
		explainer:     opts.Explainer,
		streamer:      opts.Streamer,
		webhookSecret: opts.WebhookSecret,
		logger:        opts.Logger.With("component", "server"),
		ctx:           opts.Context,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/ws", srv.handleWS)
	r.Post("/webhook", srv.handleWebhook)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)
		r.Get("/sessions", srv.handleSessions)
		r.Get("/test-broadcast", srv.handleTestBroadcast)
		r.Post("/explain", srv.handleExplain)
		r.Post("/summaries/stream", srv.handleStreamSummary)
	})
	srv.router = r

	srv.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting HTTP server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for handlers and streamed
// summaries to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
