package recognizer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/vad"
)

// Backend preferences accepted by Options.Prefer.
const (
	PreferAuto      = "auto"
	PreferStreaming = "streaming"
	PreferUtterance = "utterance"
)

// Options describes the capabilities available to Negotiate. The probe
// functions are called at most once each, in priority order.
type Options struct {
	TestMode bool
	TestText string
	Prefer   string

	Source          audio.Source
	SampleRate      int
	PartialInterval time.Duration
	ListenWindow    time.Duration
	VAD             vad.Config
	Dump            *Dumper
	Logger          *slog.Logger

	// Device reports whether a capture device is selectable.
	Device func(context.Context) error
	// Offline prepares the offline engine, downloading its model if needed.
	Offline func(context.Context) (Transcriber, error)
	// Remote connects the network engine.
	Remote func(context.Context) (Transcriber, error)
}

// Selection is the negotiated backend plus the reasons earlier candidates
// were rejected.
type Selection struct {
	Backend Backend
	Reasons []string

	engine Transcriber
}

// Close releases the selected engine.
func (s Selection) Close() error {
	if closer, ok := s.engine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Negotiate picks one backend: test mode first, then offline streaming, then
// network utterance. It returns ErrNoBackend when nothing is usable.
func Negotiate(ctx context.Context, opts Options) (Selection, error) {
	if opts.TestMode {
		return Selection{Backend: Canned{Text: opts.TestText}}, nil
	}

	var order []string
	switch strings.ToLower(strings.TrimSpace(opts.Prefer)) {
	case "", PreferAuto:
		order = []string{PreferStreaming, PreferUtterance}
	case PreferStreaming:
		order = []string{PreferStreaming}
	case PreferUtterance:
		order = []string{PreferUtterance}
	default:
		return Selection{}, fmt.Errorf("unknown recognizer preference %q", opts.Prefer)
	}

	var reasons []string
	reject := func(candidate string, err error) {
		reasons = append(reasons, fmt.Sprintf("%s: %v", candidate, err))
	}

	deviceChecked := false
	var deviceErr error
	device := func() error {
		if !deviceChecked {
			deviceChecked = true
			if opts.Device != nil {
				deviceErr = opts.Device(ctx)
			}
		}
		return deviceErr
	}

	for _, candidate := range order {
		probe := opts.Offline
		if candidate == PreferUtterance {
			probe = opts.Remote
		}
		if probe == nil {
			reject(candidate, fmt.Errorf("engine not configured"))
			continue
		}
		if err := device(); err != nil {
			reject(candidate, fmt.Errorf("audio device: %w", err))
			continue
		}
		engine, err := probe(ctx)
		if err != nil {
			reject(candidate, err)
			continue
		}

		selection := Selection{Reasons: reasons, engine: engine}
		if candidate == PreferStreaming {
			selection.Backend = NewStreaming(StreamingOptions{
				Name:            "streaming",
				Source:          opts.Source,
				Engine:          engine,
				SampleRate:      opts.SampleRate,
				PartialInterval: opts.PartialInterval,
				VAD:             opts.VAD,
				Dump:            opts.Dump,
				Logger:          opts.Logger,
			})
		} else {
			selection.Backend = NewUtterance(UtteranceOptions{
				Name:       "utterance",
				Source:     opts.Source,
				Engine:     engine,
				SampleRate: opts.SampleRate,
				Window:     opts.ListenWindow,
				Dump:       opts.Dump,
				Logger:     opts.Logger,
			})
		}
		return selection, nil
	}

	return Selection{Reasons: reasons}, fmt.Errorf("%w: %s", ErrNoBackend, strings.Join(reasons, "; "))
}
