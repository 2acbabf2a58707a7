package recognizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rbright/jarvis/internal/audio"
)

const (
	defaultListenWindow = 2500 * time.Millisecond
	pausedPoll          = 50 * time.Millisecond
)

// UtteranceOptions configures an Utterance backend.
type UtteranceOptions struct {
	Name       string
	Source     audio.Source
	Engine     Transcriber
	SampleRate int
	// Window is the length of each wake-listening capture.
	Window time.Duration
	Dump   *Dumper
	Logger *slog.Logger
}

// Utterance recognizes fixed captures one at a time.
type Utterance struct {
	name   string
	source audio.Source
	window time.Duration
	dec    decoder
	logger *slog.Logger

	paused atomic.Bool
}

// NewUtterance builds an utterance backend.
func NewUtterance(opts UtteranceOptions) *Utterance {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}
	if opts.Window <= 0 {
		opts.Window = defaultListenWindow
	}
	if opts.Name == "" {
		opts.Name = "utterance"
	}
	return &Utterance{
		name:   opts.Name,
		source: opts.Source,
		window: opts.Window,
		logger: opts.Logger,
		dec: decoder{
			engine:     opts.Engine,
			sampleRate: opts.SampleRate,
			dump:       opts.Dump,
			logger:     opts.Logger,
		},
	}
}

func (u *Utterance) Name() string { return u.name }

// Listen repeats window-sized captures and reports each as a final result.
// It idles while a Capture is running.
func (u *Utterance) Listen(ctx context.Context, sink func(Result)) error {
	for ctx.Err() == nil {
		if u.paused.Load() {
			if !sleepCtx(ctx, pausedPoll) {
				break
			}
			continue
		}

		pcm, err := audio.Record(ctx, u.source, u.window, u.dec.sampleRate)
		if err != nil {
			return fmt.Errorf("record listen window: %w", err)
		}
		if ctx.Err() != nil || u.paused.Load() {
			continue
		}
		if len(pcm) == 0 {
			sleepCtx(ctx, pausedPoll)
			continue
		}

		if text := u.dec.decode(ctx, pcm, "listen"); text != "" {
			sink(finalResult(text))
		}
	}
	return nil
}

// Capture records up to max and decodes it once.
func (u *Utterance) Capture(ctx context.Context, max time.Duration) Result {
	u.paused.Store(true)
	defer u.paused.Store(false)

	pcm, err := audio.Record(ctx, u.source, max, u.dec.sampleRate)
	if err != nil {
		if u.logger != nil {
			u.logger.Warn("command capture failed", "backend", u.name, "error", err.Error())
		}
		return finalResult("")
	}
	return finalResult(u.dec.decode(ctx, pcm, "command"))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
