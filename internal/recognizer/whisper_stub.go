//go:build !whisper

package recognizer

import "context"

// OfflineCompiled reports whether the offline engine is linked in.
const OfflineCompiled = false

// Whisper is unavailable in this build.
type Whisper struct{}

// NewOffline always fails without the whisper build tag.
func NewOffline(string) (*Whisper, error) {
	return nil, ErrOfflineUnavailable
}

func (*Whisper) Transcribe(context.Context, []int16, int) (string, error) {
	return "", ErrOfflineUnavailable
}

func (*Whisper) Close() error { return nil }
