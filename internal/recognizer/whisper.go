//go:build whisper

package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rbright/jarvis/internal/transcript"
)

// OfflineCompiled reports whether the offline engine is linked in.
const OfflineCompiled = true

// Whisper runs whisper.cpp on a loaded ggml model. Calls are serialized
// because one model is shared by listen and capture decodes.
type Whisper struct {
	mu    sync.Mutex
	model whisper.Model
}

// NewOffline loads the ggml model at modelPath.
func NewOffline(modelPath string) (*Whisper, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
	}
	return &Whisper{model: model}, nil
}

// Transcribe decodes 16 kHz mono PCM.
func (w *Whisper) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if sampleRate != whisper.SampleRate {
		return "", fmt.Errorf("whisper needs %d Hz audio, got %d", whisper.SampleRate, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	data := intBuffer(pcm, sampleRate).AsFloat32Buffer().Data
	var cb whisper.SegmentCallback
	if err := wctx.Process(data, cb); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var segments []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read whisper segment: %w", err)
		}
		segments = append(segments, strings.TrimSpace(segment.Text))
	}
	return transcript.Assemble(segments), nil
}

// Close frees the model.
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.model.Close()
}
