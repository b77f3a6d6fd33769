package batcher

import (
	"strings"
	"time"
)

// Fragment is one unit of text with its arrival time.
type Fragment struct {
	Text string
	At   time.Time
}

// window accumulates fragments in arrival order until drained. It is not
// safe for concurrent use; Batcher guards it.
type window struct {
	fragments []Fragment
}

func (w *window) Add(f Fragment) {
	w.fragments = append(w.fragments, f)
}

// Drain returns every pending fragment and empties the window.
// Returns nil if nothing is pending.
func (w *window) Drain() []Fragment {
	if len(w.fragments) == 0 {
		return nil
	}
	out := w.fragments
	w.fragments = nil
	return out
}

func (w *window) Len() int {
	return len(w.fragments)
}

// joinFragments returns the newline-separated text of fragments.
func joinFragments(fragments []Fragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return strings.Join(texts, "\n")
}
