// Package summary turns a window of transcript text into a structured review.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/llm"
)

const (
	// FallbackReview replaces the review when every attempt failed.
	FallbackReview = "Unable to generate summary at this time."
	// StreamFailure is carried by the final chunk of a failed stream.
	StreamFailure = "Unable to stream summary at this time."
)

const systemPrompt = "You review live lecture and meeting transcripts for language learners."

const reviewTemplate = `Please analyze the following text and provide a structured content review.
Format your response exactly as follows:

**Main Topic:** [1-3 word topic]

**Key Point:** [One concise sentence about the main idea]

**Important Vocabulary/Phrases:** [List 2-4 key terms from the text]

**Overview:** [A 1-2 sentence summary that would help someone understand what was discussed]

Text to analyze:
{{text}}`

// ReviewPrompt renders the fixed four-field review request for text.
func ReviewPrompt(text string) []llm.Message {
	return llm.Prompt(systemPrompt, strings.ReplaceAll(reviewTemplate, "{{text}}", text))
}

// Chunk is one piece of a streamed review. The last chunk of a stream has
// End set, or Err when the stream failed.
type Chunk struct {
	Text string
	End  bool
	Err  string
}

type Summarizer struct {
	client  llm.Client
	logger  *slog.Logger
	backoff []time.Duration
	sleep   func(time.Duration)
}

func New(client llm.Client, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		client:  client,
		logger:  logger,
		backoff: []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second},
		sleep:   time.Sleep,
	}
}

// Summarize returns the review for text, retrying transient failures.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	messages := ReviewPrompt(text)

	var lastErr error
	for attempt := range s.backoff {
		result, err := s.client.Complete(ctx, messages)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < len(s.backoff)-1 {
			s.logger.Warn("review attempt failed", "attempt", attempt+1, "error", err)
			s.sleep(s.backoff[attempt])
		}
	}
	return "", fmt.Errorf("summarize failed after retries: %w", lastErr)
}

// StreamSummarize reviews text incrementally. onChunk is called once per
// partial result and once more with the end or error marker. Failures are
// reported only through the final chunk.
func (s *Summarizer) StreamSummarize(ctx context.Context, text string, onChunk func(Chunk)) {
	err := s.client.Stream(ctx, ReviewPrompt(text), func(delta string) {
		onChunk(Chunk{Text: delta})
	})
	if err != nil {
		s.logger.Warn("streamed review failed", "error", err)
		onChunk(Chunk{Err: StreamFailure})
		return
	}
	onChunk(Chunk{End: true})
}
