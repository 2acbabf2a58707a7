// Package recognizer turns microphone audio into recognition results.
//
// Two backend shapes exist. Streaming backends listen continuously and emit
// partial and final results from an internal cursor. Utterance backends run
// one bounded capture per recognition. Both implement Backend, and Negotiate
// picks one at startup.
package recognizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rbright/jarvis/internal/transcript"
)

var (
	// ErrNoBackend means no recognition path is usable on this host.
	ErrNoBackend = errors.New("no speech recognition backend available")
	// ErrOfflineUnavailable means the binary was built without the offline engine.
	ErrOfflineUnavailable = errors.New("offline recognizer not compiled in (build with -tags whisper)")
)

// Result is one recognized piece of text.
type Result struct {
	Text  string
	Final bool
	At    time.Time
}

// Backend is a recognition source driven by the activation engine.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string
	// Listen recognizes continuously until ctx ends. sink must not block.
	// A non-nil error means the audio path failed and Listen may be retried.
	Listen(ctx context.Context, sink func(Result)) error
	// Capture records at most max of audio and recognizes it once. Failures
	// produce a final Result with empty text.
	Capture(ctx context.Context, max time.Duration) Result
}

// Transcriber converts mono PCM to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(context.Context, []int16, int) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	return f(ctx, pcm, sampleRate)
}

// decoder wraps a Transcriber with dumping, logging and text cleanup shared by
// every audio backend.
type decoder struct {
	engine     Transcriber
	sampleRate int
	dump       *Dumper
	logger     *slog.Logger
}

// decode never fails: engine errors are logged and yield "".
func (d decoder) decode(ctx context.Context, pcm []int16, label string) string {
	if len(pcm) == 0 || d.engine == nil {
		return ""
	}
	d.dump.Write(label, pcm, d.sampleRate)

	started := time.Now()
	text, err := d.engine.Transcribe(ctx, pcm, d.sampleRate)
	if err != nil {
		if d.logger != nil && ctx.Err() == nil {
			d.logger.Warn("speech recognition failed", "stage", label, "error", err.Error())
		}
		return ""
	}
	text = transcript.Clean(text)
	if d.logger != nil {
		d.logger.Debug("speech recognized",
			"stage", label,
			"text", text,
			"samples", len(pcm),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	return text
}

func finalResult(text string) Result {
	return Result{Text: text, Final: true, At: time.Now()}
}
