package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Environment holds the JARVIS_* overrides. Unset variables stay nil.
type Environment struct {
	TestMode    *bool   `env:"JARVIS_TEST_MODE"`
	TestText    *string `env:"JARVIS_TEST_TEXT"`
	ChannelAddr *string `env:"JARVIS_CHANNEL_ADDR"`
	RemoteGRPC  *string `env:"JARVIS_REMOTE_GRPC"`
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseEnvironment decodes the overrides from KEY=VALUE pairs.
func ParseEnvironment(environ []string) (Environment, error) {
	set, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Environment{}, fmt.Errorf("parse environment: %w", err)
	}
	var out Environment
	if err := env.Unmarshal(set, &out); err != nil {
		return Environment{}, fmt.Errorf("decode JARVIS_* environment: %w", err)
	}
	return out, nil
}

// ApplyTo overlays the set variables onto cfg.
func (e Environment) ApplyTo(cfg *Config) {
	if e.TestMode != nil {
		cfg.Test.Enable = *e.TestMode
	}
	if e.TestText != nil {
		cfg.Test.Text = *e.TestText
	}
	if e.ChannelAddr != nil && strings.TrimSpace(*e.ChannelAddr) != "" {
		cfg.Channel.Addr = strings.TrimSpace(*e.ChannelAddr)
	}
	if e.RemoteGRPC != nil {
		cfg.Remote.GRPC = strings.TrimSpace(*e.RemoteGRPC)
	}
}
