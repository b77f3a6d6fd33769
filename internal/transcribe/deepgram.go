package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var (
	ErrConnect = errors.New("deepgram connect failed")
	ErrClosed  = errors.New("transcription stream closed")
)

type Options struct {
	APIKey     string
	Model      string
	Language   string
	Encoding   string
	SampleRate int
	// FrameBuffer is how many audio frames may wait for the writer before new
	// frames are dropped.
	FrameBuffer int

	// OnFragment receives the text of every finished utterance segment.
	OnFragment func(text string, at time.Time)
	Logger     *slog.Logger
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = "nova-2"
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	if o.Encoding == "" {
		o.Encoding = "linear16"
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	if o.FrameBuffer <= 0 {
		o.FrameBuffer = 256
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// liveConn is the part of the Deepgram websocket client a Stream drives.
type liveConn interface {
	io.Writer
	Stop()
}

// Stream feeds one session's raw audio to Deepgram and reports finished
// utterances as fragments.
type Stream struct {
	opts   Options
	logger *slog.Logger

	conn   liveConn
	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	dropped   atomic.Int64

	mu     sync.Mutex
	buffer utteranceBuffer
}

func newStream(opts Options) *Stream {
	opts = opts.withDefaults()
	return &Stream{
		opts:   opts,
		logger: opts.Logger.With("component", "transcribe"),
		frames: make(chan []byte, opts.FrameBuffer),
		done:   make(chan struct{}),
	}
}

// Dial opens a live transcription stream.
func Dial(ctx context.Context, opts Options) (*Stream, error) {
	s := newStream(opts)

	cOptions := &interfaces.ClientOptions{EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:       s.opts.Model,
		Language:    s.opts.Language,
		Diarize:     true,
		Punctuate:   true,
		SmartFormat: true,
		Encoding:    s.opts.Encoding,
		SampleRate:  s.opts.SampleRate,
		Channels:    1,
	}

	dg, err := client.NewWSUsingCallback(ctx, s.opts.APIKey, cOptions, tOptions, callback{stream: s})
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return nil, ErrConnect
	}

	s.start(dg)
	return s, nil
}

func (s *Stream) start(conn liveConn) {
	s.conn = conn
	s.wg.Add(1)
	go s.writeLoop()
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.frames:
			if _, err := s.conn.Write(frame); err != nil {
				s.logger.Warn("deepgram write failed", "error", err)
			}
		}
	}
}

// WriteAudio queues one frame without blocking. Frames are dropped while the
// writer is behind.
func (s *Stream) WriteAudio(frame []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.frames <- frame:
		return nil
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("transcription behind, dropping audio", "dropped", n)
		}
		return nil
	}
}

// Dropped returns how many frames were discarded.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// Close flushes any buffered utterance and stops the Deepgram stream.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.flush()
		if s.conn != nil {
			s.conn.Stop()
		}
	})
	return nil
}

// addResult buffers a final result and closes the utterance on speech_final.
func (s *Stream) addResult(mr *api.MessageResponse) {
	if len(mr.Channel.Alternatives) == 0 || !mr.IsFinal {
		return
	}
	alt := mr.Channel.Alternatives[0]
	if strings.TrimSpace(alt.Transcript) == "" {
		return
	}

	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{
			Speaker:        w.Speaker,
			PunctuatedWord: w.PunctuatedWord,
			Start:          w.Start,
			End:            w.End,
		})
	}

	s.mu.Lock()
	s.buffer.AddWords(words)
	s.mu.Unlock()

	if mr.SpeechFinal {
		s.flush()
	}
}

func (s *Stream) flush() {
	s.mu.Lock()
	words := s.buffer.Flush()
	s.mu.Unlock()

	if s.opts.OnFragment == nil {
		return
	}
	for _, seg := range GroupWordsBySpeaker(words, s.opts.Now()) {
		if text := strings.TrimSpace(seg.Text); text != "" {
			s.opts.OnFragment(text, seg.Timestamp)
		}
	}
}

// callback receives Deepgram websocket events for one Stream.
type callback struct {
	stream *Stream
}

func (c callback) Message(mr *api.MessageResponse) error {
	c.stream.addResult(mr)
	return nil
}

func (c callback) UtteranceEnd(*api.UtteranceEndResponse) error {
	c.stream.flush()
	return nil
}

func (c callback) Open(*api.OpenResponse) error {
	c.stream.logger.Info("connected to Deepgram")
	return nil
}

func (c callback) Metadata(*api.MetadataResponse) error { return nil }

func (c callback) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (c callback) Close(*api.CloseResponse) error {
	c.stream.logger.Info("disconnected from Deepgram")
	return nil
}

func (c callback) Error(er *api.ErrorResponse) error {
	c.stream.logger.Warn("deepgram error", "code", er.ErrCode, "description", er.Description)
	return nil
}

func (c callback) UnhandledEvent([]byte) error { return nil }
