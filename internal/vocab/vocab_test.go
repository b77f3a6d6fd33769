package vocab

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/rtms-tutor/internal/llm"
)

type llmMock struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
	block    chan struct{}
}

func (m *llmMock) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	return m.response, m.err
}

func (m *llmMock) Stream(context.Context, []llm.Message, func(string)) error {
	return errors.New("not used")
}

func (m *llmMock) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func fixedNow() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

func TestLookupParsesTermsAndTranslates(t *testing.T) {
	explainer := &llmMock{response: "```json\n[{\"word\":\"outlook\",\"explanation\":\"a view of the future. The outlook is good.\"}]\n```"}
	translator := &llmMock{response: "Las perspectivas económicas siguen siendo inciertas."}
	s := New(Config{Explainer: explainer, Translator: translator, Language: "Spanish", Now: fixedNow})

	got := s.Lookup(context.Background(), "The economic outlook remains uncertain.")

	if got.OriginalText != "The economic outlook remains uncertain." {
		t.Fatalf("OriginalText = %q", got.OriginalText)
	}
	if len(got.Terms) != 1 || got.Terms[0].Word != "outlook" {
		t.Fatalf("Terms = %#v", got.Terms)
	}
	if !strings.HasPrefix(got.Explanation, "outlook: a view of the future.") {
		t.Fatalf("Explanation = %q", got.Explanation)
	}
	if got.Translation != "Las perspectivas económicas siguen siendo inciertas." {
		t.Fatalf("Translation = %q", got.Translation)
	}
	if !got.Timestamp.Equal(fixedNow()) {
		t.Fatalf("Timestamp = %v", got.Timestamp)
	}
	if !strings.Contains(translator.lastPrompt(), "to Spanish") {
		t.Fatalf("translation prompt missing language: %q", translator.lastPrompt())
	}
	if !strings.Contains(explainer.lastPrompt(), `"word" and "explanation"`) {
		t.Fatalf("unexpected explain prompt: %q", explainer.lastPrompt())
	}
}

func TestLookupKeepsUnstructuredExplanation(t *testing.T) {
	explainer := &llmMock{response: "```\nNo advanced vocabulary here.\n```"}
	s := New(Config{Explainer: explainer, Translator: &llmMock{response: "hola"}})

	got := s.Lookup(context.Background(), "hello")
	if got.Explanation != "No advanced vocabulary here." {
		t.Fatalf("Explanation = %q", got.Explanation)
	}
	if got.Terms != nil {
		t.Fatalf("Terms = %#v, want nil", got.Terms)
	}
}

func TestLookupFallbacks(t *testing.T) {
	failing := &llmMock{err: errors.New("503")}
	s := New(Config{Explainer: failing})

	got := s.Lookup(context.Background(), "hello")
	if got.Explanation != FallbackExplanation {
		t.Fatalf("Explanation = %q", got.Explanation)
	}
	if got.Translation != FallbackTranslation {
		t.Fatalf("Translation = %q", got.Translation)
	}
}

func TestSubmitDoesNotBlockAndDelivers(t *testing.T) {
	block := make(chan struct{})
	client := &llmMock{response: "[]", block: block}
	results := make(chan Result, 2)
	s := New(Config{Explainer: client, OnResult: func(r Result) { results <- r }})

	done := make(chan struct{})
	go func() {
		s.Submit("first")
		s.Submit("second")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on the external call")
	}

	close(block)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			seen[r.OriginalText] = true
		case <-time.After(time.Second):
			t.Fatal("result not delivered")
		}
	}
	if !seen["first"] || !seen["second"] {
		t.Fatalf("unexpected results %v", seen)
	}
	s.Wait()
}

func TestSubmitDropsWhenAllSlotsBusy(t *testing.T) {
	block := make(chan struct{})
	explainer := &llmMock{response: "[]", block: block}
	results := make(chan Result, 16)
	s := New(Config{
		Explainer:   explainer,
		Translator:  &llmMock{response: "hola"},
		Concurrency: 2,
		OnResult:    func(r Result) { results <- r },
	})

	const submitted = 500
	for i := 0; i < submitted; i++ {
		s.Submit("fragment")
	}

	if got := s.Dropped(); got != submitted-2 {
		t.Fatalf("Dropped = %d, want %d", got, submitted-2)
	}

	close(block)
	s.Wait()
	if got := len(results); got != 2 {
		t.Fatalf("delivered %d results, want 2", got)
	}

	s.Submit("after drain")
	s.Wait()
	if got := len(results); got != 3 {
		t.Fatalf("delivered %d results after drain, want 3", got)
	}
	if got := s.Dropped(); got != submitted-2 {
		t.Fatalf("Dropped after drain = %d, want %d", got, submitted-2)
	}
}

func TestParseTermsDropsBlankWords(t *testing.T) {
	terms, err := parseTerms(`[{"word":"","explanation":"x"},{"word":"caution","explanation":"care"}]`)
	if err != nil {
		t.Fatalf("parseTerms failed: %v", err)
	}
	if len(terms) != 1 || terms[0].Word != "caution" {
		t.Fatalf("terms = %#v", terms)
	}
	if _, err := parseTerms("not json"); err == nil {
		t.Fatal("expected parse error")
	}
}
