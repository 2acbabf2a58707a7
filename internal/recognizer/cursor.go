package recognizer

import (
	"time"

	"github.com/rbright/jarvis/internal/vad"
)

const (
	defaultPartialInterval = 500 * time.Millisecond
	defaultPreRoll         = 300 * time.Millisecond
	defaultMaxUtterance    = 10 * time.Second
)

// cursorEvent is what one block of audio produced.
type cursorEvent int

const (
	cursorNone cursorEvent = iota
	cursorPartial
	cursorFinal
)

// cursor accumulates the current utterance for a streaming backend. It keeps
// a short pre-roll while quiet so the first syllable is not lost.
type cursor struct {
	detector *vad.Detector

	preRoll        int
	partialSamples int
	maxSamples     int

	samples     []int16
	lastPartial int
}

func newCursor(sampleRate int, partialInterval time.Duration, vadCfg vad.Config) *cursor {
	if partialInterval <= 0 {
		partialInterval = defaultPartialInterval
	}
	vadCfg.SampleRate = sampleRate
	return &cursor{
		detector:       vad.New(vadCfg),
		preRoll:        samplesIn(defaultPreRoll, sampleRate),
		partialSamples: samplesIn(partialInterval, sampleRate),
		maxSamples:     samplesIn(defaultMaxUtterance, sampleRate),
	}
}

// feed appends block and reports whether a partial or final snapshot is due.
// The snapshot is a copy the caller may keep.
func (c *cursor) feed(block []int16) (cursorEvent, []int16) {
	boundary := c.detector.Feed(block)
	c.samples = append(c.samples, block...)

	switch {
	case boundary:
		return cursorFinal, c.take()
	case !c.detector.Heard():
		c.trimToPreRoll()
		return cursorNone, nil
	case len(c.samples) >= c.maxSamples:
		c.detector.Reset()
		return cursorFinal, c.take()
	case len(c.samples)-c.lastPartial >= c.partialSamples:
		c.lastPartial = len(c.samples)
		return cursorPartial, append([]int16(nil), c.samples...)
	}
	return cursorNone, nil
}

// reset drops everything buffered.
func (c *cursor) reset() {
	c.detector.Reset()
	c.samples = c.samples[:0]
	c.lastPartial = 0
}

func (c *cursor) take() []int16 {
	out := append([]int16(nil), c.samples...)
	c.samples = c.samples[:0]
	c.lastPartial = 0
	return out
}

func (c *cursor) trimToPreRoll() {
	if extra := len(c.samples) - c.preRoll; extra > 0 {
		c.samples = append(c.samples[:0], c.samples[extra:]...)
	}
	c.lastPartial = 0
}

func samplesIn(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}
