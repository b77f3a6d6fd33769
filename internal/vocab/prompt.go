package vocab

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sjawhar/rtms-tutor/internal/llm"
)

const systemPrompt = "You help intermediate English learners follow a live lecture."

func explainPrompt(sentence string) []llm.Message {
	return llm.Prompt(systemPrompt, fmt.Sprintf(`Identify only genuinely advanced or uncommon words/phrases in: %q.
For each, provide a clear, simple explanation with an example sentence.
Return the response as a valid JSON array of objects with "word" and "explanation" properties.
Format each explanation as a brief definition followed by an example sentence.
Skip basic vocabulary and focus only on words that intermediate ESL learners might struggle with.
Do not include any markdown formatting (like `+"```json"+`) in your response.`, sentence))
}

func translatePrompt(text, language string) []llm.Message {
	return llm.Prompt(systemPrompt, fmt.Sprintf("Translate the following text to %s. Reply with the translation only: %q", language, text))
}

// Term is one advanced word or phrase with its explanation.
type Term struct {
	Word        string `json:"word"`
	Explanation string `json:"explanation"`
}

// stripFences removes markdown code fences models add despite being asked not to.
func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

func parseTerms(raw string) ([]Term, error) {
	var terms []Term
	if err := json.Unmarshal([]byte(stripFences(raw)), &terms); err != nil {
		return nil, fmt.Errorf("parse terms: %w", err)
	}
	out := terms[:0]
	for _, term := range terms {
		if strings.TrimSpace(term.Word) != "" {
			out = append(out, term)
		}
	}
	return out, nil
}

// formatTerms renders terms as one "word: explanation" line each.
func formatTerms(terms []Term) string {
	lines := make([]string, len(terms))
	for i, term := range terms {
		lines[i] = term.Word + ": " + term.Explanation
	}
	return strings.Join(lines, "\n")
}
