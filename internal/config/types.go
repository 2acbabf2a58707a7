// Package config resolves, parses, validates, and defaults jarvis configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by jarvis.
type Config struct {
	Wake       WakeConfig
	Audio      AudioConfig
	Commands   CommandsConfig
	Sounds     SoundsConfig
	Model      ModelConfig
	Recognizer RecognizerConfig
	Remote     RemoteConfig
	Channel    ChannelConfig
	Debug      DebugConfig
	Test       TestConfig
}

// WakeConfig controls wake detection and the capture that follows it.
type WakeConfig struct {
	Phrases       []string
	Threshold     float64
	Debounce      time.Duration
	ResponseDelay time.Duration
	CommandMax    time.Duration
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
}

// CommandsConfig locates the persisted command table.
type CommandsConfig struct {
	Path string
}

// SoundsConfig controls greeting and acknowledgment playback.
type SoundsConfig struct {
	Enable   bool
	Dir      string
	Greeting string
	Acks     []string
}

// ModelConfig locates the offline model and where to fetch it from.
type ModelConfig struct {
	Dir          string
	URL          string
	AutoDownload bool
	// DownloadTimeout bounds one model fetch, including a stalled server.
	DownloadTimeout time.Duration
}

// RecognizerConfig controls backend negotiation and streaming cadence.
type RecognizerConfig struct {
	Prefer          string
	Language        string
	PartialInterval time.Duration
	ListenWindow    time.Duration
}

// RemoteConfig points at the network recognizer.
type RemoteConfig struct {
	GRPC        string
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// ChannelConfig controls the local notification channel.
type ChannelConfig struct {
	Addr string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// TestConfig substitutes canned text for audio capture.
type TestConfig struct {
	Enable bool
	Text   string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
