// Package transcribe turns raw session audio into text fragments using a
// live Deepgram stream.
package transcribe

import (
	"strings"
	"time"
)

type Word struct {
	Speaker        *int
	PunctuatedWord string
	Start          float64
	End            float64
}

// Segment is a run of consecutive words from one speaker.
type Segment struct {
	Speaker   int
	Text      string
	StartTime float64
	EndTime   float64
	Timestamp time.Time
}

// GroupWordsBySpeaker splits words into segments at every speaker change.
// Words without diarization belong to speaker -1.
func GroupWordsBySpeaker(words []Word, at time.Time) []Segment {
	if len(words) == 0 {
		return nil
	}

	var segments []Segment
	var text strings.Builder
	current := Segment{Speaker: speakerOf(words[0]), StartTime: words[0].Start, Timestamp: at}

	for i, w := range words {
		speaker := speakerOf(w)
		if i > 0 && speaker != current.Speaker {
			current.Text = text.String()
			segments = append(segments, current)
			text.Reset()
			current = Segment{Speaker: speaker, StartTime: w.Start, Timestamp: at}
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(w.PunctuatedWord)
		current.EndTime = w.End
	}

	current.Text = text.String()
	return append(segments, current)
}

func speakerOf(w Word) int {
	if w.Speaker == nil {
		return -1
	}
	return *w.Speaker
}
