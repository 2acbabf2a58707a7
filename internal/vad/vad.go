// Package vad finds utterance boundaries in 16-bit PCM by tracking energy in
// the speech band.
package vad

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

// Config tunes the detector. Zero values take the defaults below.
type Config struct {
	SampleRate int
	FrameSize  int
	LowHz      float64
	HighHz     float64
	// Threshold is the speech-band RMS level (int16 scale) treated as speech.
	Threshold float64
	// Hangover is the trailing quiet that closes an utterance.
	Hangover time.Duration
	// MinSpeech is the voiced time required before a boundary can fire.
	MinSpeech time.Duration
}

const (
	defaultSampleRate = 16000
	defaultFrameSize  = 512
	defaultLowHz      = 300
	defaultHighHz     = 3400
	defaultThreshold  = 400
	defaultHangover   = 600 * time.Millisecond
	defaultMinSpeech  = 90 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = defaultFrameSize
	}
	if c.LowHz <= 0 {
		c.LowHz = defaultLowHz
	}
	if c.HighHz <= c.LowHz {
		c.HighHz = defaultHighHz
	}
	if c.Threshold <= 0 {
		c.Threshold = defaultThreshold
	}
	if c.Hangover <= 0 {
		c.Hangover = defaultHangover
	}
	if c.MinSpeech < 0 {
		c.MinSpeech = 0
	} else if c.MinSpeech == 0 {
		c.MinSpeech = defaultMinSpeech
	}
	return c
}

// Detector is a streaming endpointer. It is not safe for concurrent use.
type Detector struct {
	cfg Config

	pending       []int16
	voicedSamples int
	quietSamples  int
	heard         bool
	lastLevel     float64
}

// New returns a detector for cfg.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Feed consumes samples and reports whether an utterance boundary was
// reached. The detector resets its speech state after a boundary.
func (d *Detector) Feed(samples []int16) bool {
	d.pending = append(d.pending, samples...)

	boundary := false
	size := d.cfg.FrameSize
	for len(d.pending) >= size {
		frame := d.pending[:size]
		level := BandLevel(frame, d.cfg.SampleRate, d.cfg.LowHz, d.cfg.HighHz)
		d.pending = d.pending[size:]
		d.lastLevel = level

		if level >= d.cfg.Threshold {
			d.voicedSamples += size
			d.quietSamples = 0
			if d.voicedSamples >= d.samplesFor(d.cfg.MinSpeech) {
				d.heard = true
			}
			continue
		}

		if !d.heard {
			d.voicedSamples = 0
			continue
		}
		d.quietSamples += size
		if d.quietSamples >= d.samplesFor(d.cfg.Hangover) {
			boundary = true
			d.resetSpeech()
		}
	}

	if len(d.pending) == 0 {
		d.pending = nil
	}
	return boundary
}

// Heard reports whether speech is in progress.
func (d *Detector) Heard() bool {
	return d.heard
}

// Level returns the band level of the last analysed frame.
func (d *Detector) Level() float64 {
	return d.lastLevel
}

// Reset drops buffered samples and speech state.
func (d *Detector) Reset() {
	d.pending = nil
	d.lastLevel = 0
	d.resetSpeech()
}

func (d *Detector) resetSpeech() {
	d.heard = false
	d.voicedSamples = 0
	d.quietSamples = 0
}

func (d *Detector) samplesFor(duration time.Duration) int {
	return int(duration.Seconds() * float64(d.cfg.SampleRate))
}

// BandLevel returns the RMS amplitude of frame restricted to [lowHz, highHz].
// A full-scale sine inside the band reports amplitude/sqrt(2).
func BandLevel(frame []int16, sampleRate int, lowHz, highHz float64) float64 {
	n := len(frame)
	if n == 0 || sampleRate <= 0 {
		return 0
	}

	input := make([]float64, n)
	for i, sample := range frame {
		input[i] = float64(sample)
	}
	spectrum := fft.FFTReal(input)

	var power float64
	binHz := float64(sampleRate) / float64(n)
	for k := 1; k < (n+1)/2; k++ {
		freq := float64(k) * binHz
		if freq < lowHz || freq > highHz {
			continue
		}
		magnitude := cmplx.Abs(spectrum[k])
		power += magnitude * magnitude
	}
	return math.Sqrt(2*power) / float64(n)
}
