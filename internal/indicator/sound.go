package indicator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/jfreymuth/pulse"
)

// Sink plays mono PCM.
type Sink interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
	Probe(ctx context.Context) error
}

// PulseSink plays through the Pulse server.
type PulseSink struct{}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("jarvis"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// Probe checks that a Pulse server is reachable.
func (PulseSink) Probe(context.Context) error {
	client, err := newPulseClient()
	if err != nil {
		return err
	}
	client.Close()
	return nil
}

// Play blocks until samples have drained or ctx ends.
func (PulseSink) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := newPulseClient()
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) || ctx.Err() != nil {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("jarvis sound"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play sound stream: %w", err)
	}
	return ctx.Err()
}

// decodeWAV reads a PCM WAV file and returns mono s16 samples.
func decodeWAV(r io.ReadSeeker) ([]int16, int, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("not a valid wav file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, errors.New("wav has no sample rate")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += toInt16(buf.Data[i*channels+ch], buf.SourceBitDepth)
		}
		out[i] = int16(sum / channels)
	}
	return out, buf.Format.SampleRate, nil
}

// toInt16 rescales one decoded sample to 16 bits. 8-bit WAV is unsigned.
func toInt16(v int, bitDepth int) int {
	switch bitDepth {
	case 8:
		return (v - 128) << 8
	case 24:
		return v >> 8
	case 32:
		return v >> 16
	default:
		return v
	}
}
