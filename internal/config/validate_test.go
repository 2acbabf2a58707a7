package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsHaveNoWarnings(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "no phrases", mutate: func(c *Config) { c.Wake.Phrases = nil }, wantErr: "wake.phrases"},
		{name: "blank phrases", mutate: func(c *Config) { c.Wake.Phrases = []string{" ", ""} }, wantErr: "wake.phrases"},
		{name: "zero threshold", mutate: func(c *Config) { c.Wake.Threshold = 0 }, wantErr: "wake.threshold"},
		{name: "threshold above one", mutate: func(c *Config) { c.Wake.Threshold = 1.01 }, wantErr: "wake.threshold"},
		{name: "negative debounce", mutate: func(c *Config) { c.Wake.Debounce = -1 }, wantErr: "wake.debounce_ms"},
		{name: "negative response delay", mutate: func(c *Config) { c.Wake.ResponseDelay = -1 }, wantErr: "wake.response_delay_ms"},
		{name: "zero capture", mutate: func(c *Config) { c.Wake.CommandMax = 0 }, wantErr: "wake.command_max_seconds"},
		{name: "zero sample rate", mutate: func(c *Config) { c.Audio.SampleRate = 0 }, wantErr: "audio.sample_rate"},
		{name: "empty commands path", mutate: func(c *Config) { c.Commands.Path = " " }, wantErr: "commands.path"},
		{name: "bad prefer", mutate: func(c *Config) { c.Recognizer.Prefer = "cloud" }, wantErr: "recognizer.prefer"},
		{name: "empty language", mutate: func(c *Config) { c.Recognizer.Language = "" }, wantErr: "recognizer.language"},
		{name: "zero partial interval", mutate: func(c *Config) { c.Recognizer.PartialInterval = 0 }, wantErr: "partial_interval_ms"},
		{name: "zero listen window", mutate: func(c *Config) { c.Recognizer.ListenWindow = 0 }, wantErr: "listen_window_ms"},
		{name: "zero download timeout", mutate: func(c *Config) { c.Model.DownloadTimeout = 0 }, wantErr: "model.download_timeout_ms"},
		{name: "zero dial timeout", mutate: func(c *Config) { c.Remote.DialTimeout = 0 }, wantErr: "remote.dial_timeout_ms"},
		{name: "zero call timeout", mutate: func(c *Config) { c.Remote.CallTimeout = 0 }, wantErr: "remote.call_timeout_ms"},
		{name: "channel without port", mutate: func(c *Config) { c.Channel.Addr = "localhost" }, wantErr: "channel.addr"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Wake.Phrases = []string{"jarvis", "JARVIS "}
	cfg.Remote.GRPC = ""
	cfg.Model.Dir = ""
	cfg.Sounds.Acks = nil
	cfg.Test = TestConfig{Enable: true}

	warnings, err := Validate(cfg)
	require.NoError(t, err)

	messages := make([]string, 0, len(warnings))
	for _, w := range warnings {
		messages = append(messages, w.Message)
	}
	require.Len(t, messages, 5)
	require.Contains(t, messages[0], "listed more than once")
	require.Contains(t, messages[1], "remote.grpc")
	require.Contains(t, messages[2], "model.dir")
	require.Contains(t, messages[3], "sounds.acks")
	require.Contains(t, messages[4], "test mode")
}
