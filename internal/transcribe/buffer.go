package transcribe

// utteranceBuffer accumulates words from is_final results until speech_final
// or an utterance end closes the utterance.
type utteranceBuffer struct {
	words []Word
}

func (b *utteranceBuffer) AddWords(words []Word) {
	b.words = append(b.words, words...)
}

// Flush returns all accumulated words and resets the buffer.
// Returns nil if the buffer is empty.
func (b *utteranceBuffer) Flush() []Word {
	if len(b.words) == 0 {
		return nil
	}
	out := b.words
	b.words = nil
	return out
}

func (b *utteranceBuffer) Len() int {
	return len(b.words)
}
