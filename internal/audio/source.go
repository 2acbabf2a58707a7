package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSampleRate is the capture rate used when none is configured.
const DefaultSampleRate = 16000

// Stream is one running capture.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
}

// Source opens capture streams on demand.
type Source interface {
	Open(context.Context) (Stream, error)
}

// PulseSource opens Pulse record streams on the preferred input device.
type PulseSource struct {
	Input      string
	Fallback   string
	SampleRate int
	Logger     *slog.Logger
}

// Open selects a device and starts a capture on it.
func (p PulseSource) Open(ctx context.Context) (Stream, error) {
	selection, err := SelectDevice(ctx, p.Input, p.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && p.Logger != nil {
		p.Logger.Warn(selection.Warning)
	}
	capture, err := StartCapture(ctx, selection.Device, p.SampleRate)
	if err != nil {
		return nil, err
	}
	if p.Logger != nil {
		p.Logger.Debug("capture started", "device", selection.Device.Describe(), "sample_rate", p.SampleRate)
	}
	return capture, nil
}

// Record captures up to d of audio from src and returns mono samples. A
// cancelled context ends the recording early with what was captured.
func Record(ctx context.Context, src Source, d time.Duration, rate int) ([]int16, error) {
	if src == nil {
		return nil, errors.New("no audio source")
	}
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	stream, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	want := int(d.Seconds() * float64(rate))
	samples := make([]int16, 0, want)
	timer := time.NewTimer(d)
	defer timer.Stop()

	for len(samples) < want {
		select {
		case <-ctx.Done():
			return samples, nil
		case <-timer.C:
			return samples, nil
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return samples, nil
			}
			samples = append(samples, PCM16(chunk)...)
		}
	}
	return samples[:want], nil
}

// PCM16 decodes little-endian s16 bytes. A trailing odd byte is dropped.
func PCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// Bytes16 encodes samples as little-endian s16 bytes.
func Bytes16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
