package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/vad"
)

// StreamingOptions configures a Streaming backend.
type StreamingOptions struct {
	Name            string
	Source          audio.Source
	Engine          Transcriber
	SampleRate      int
	PartialInterval time.Duration
	VAD             vad.Config
	Dump            *Dumper
	Logger          *slog.Logger
}

// Streaming listens continuously. Audio chunks are moved into a cursor on
// the ingestion goroutine; decoding runs on a separate worker so the capture
// path only ever copies.
type Streaming struct {
	name            string
	source          audio.Source
	partialInterval time.Duration
	vadCfg          vad.Config
	dec             decoder
	logger          *slog.Logger

	paused atomic.Bool
}

type decodeJob struct {
	pcm   []int16
	final bool
}

// NewStreaming builds a streaming backend.
func NewStreaming(opts StreamingOptions) *Streaming {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}
	if opts.Name == "" {
		opts.Name = "streaming"
	}
	return &Streaming{
		name:            opts.Name,
		source:          opts.Source,
		partialInterval: opts.PartialInterval,
		vadCfg:          opts.VAD,
		logger:          opts.Logger,
		dec: decoder{
			engine:     opts.Engine,
			sampleRate: opts.SampleRate,
			dump:       opts.Dump,
			logger:     opts.Logger,
		},
	}
}

func (s *Streaming) Name() string { return s.name }

// Listen opens one capture stream and feeds it through the cursor until ctx
// ends or the stream fails.
func (s *Streaming) Listen(ctx context.Context, sink func(Result)) error {
	if s.source == nil {
		return errors.New("no audio source")
	}
	stream, err := s.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open listen stream: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	jobs := make(chan decodeJob, 4)
	var worker sync.WaitGroup
	worker.Add(1)
	go func() {
		defer worker.Done()
		s.decodeLoop(ctx, jobs, sink)
	}()
	defer worker.Wait()
	defer close(jobs)

	cur := newCursor(s.dec.sampleRate, s.partialInterval, s.vadCfg)
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-stream.Chunks():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("listen stream closed")
			}
			if s.paused.Load() {
				cur.reset()
				continue
			}

			event, pcm := cur.feed(audio.PCM16(chunk))
			switch event {
			case cursorPartial:
				select {
				case jobs <- decodeJob{pcm: pcm}:
				default:
					// Decoder still busy; the next partial covers this audio.
				}
			case cursorFinal:
				select {
				case jobs <- decodeJob{pcm: pcm, final: true}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (s *Streaming) decodeLoop(ctx context.Context, jobs <-chan decodeJob, sink func(Result)) {
	for job := range jobs {
		if ctx.Err() != nil || s.paused.Load() {
			continue
		}
		label := "partial"
		if job.final {
			label = "final"
		}
		text := s.dec.decode(ctx, job.pcm, label)
		if text == "" {
			continue
		}
		sink(Result{Text: text, Final: job.final, At: time.Now()})
	}
}

// Capture pauses the listen cursor and decodes one fresh recording.
func (s *Streaming) Capture(ctx context.Context, max time.Duration) Result {
	s.paused.Store(true)
	defer s.paused.Store(false)

	pcm, err := audio.Record(ctx, s.source, max, s.dec.sampleRate)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("command capture failed", "backend", s.name, "error", err.Error())
		}
		return finalResult("")
	}
	return finalResult(s.dec.decode(ctx, pcm, "command"))
}
