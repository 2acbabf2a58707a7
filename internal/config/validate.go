package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	phrases := 0
	seen := make(map[string]struct{}, len(cfg.Wake.Phrases))
	for _, phrase := range cfg.Wake.Phrases {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("wake phrase %q listed more than once", phrase)})
			continue
		}
		seen[key] = struct{}{}
		phrases++
	}
	if phrases == 0 {
		return nil, fmt.Errorf("wake.phrases must contain at least one non-empty phrase")
	}
	if cfg.Wake.Threshold <= 0 || cfg.Wake.Threshold > 1 {
		return nil, fmt.Errorf("wake.threshold must be in (0, 1]")
	}
	if cfg.Wake.Debounce < 0 {
		return nil, fmt.Errorf("wake.debounce_ms must be >= 0")
	}
	if cfg.Wake.ResponseDelay < 0 {
		return nil, fmt.Errorf("wake.response_delay_ms must be >= 0")
	}
	if cfg.Wake.CommandMax <= 0 {
		return nil, fmt.Errorf("wake.command_max_seconds must be > 0")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if strings.TrimSpace(cfg.Commands.Path) == "" {
		return nil, fmt.Errorf("commands.path must not be empty")
	}

	switch cfg.Recognizer.Prefer {
	case "auto", "streaming", "utterance":
	default:
		return nil, fmt.Errorf("recognizer.prefer must be one of: auto, streaming, utterance")
	}
	if strings.TrimSpace(cfg.Recognizer.Language) == "" {
		return nil, fmt.Errorf("recognizer.language must not be empty")
	}
	if cfg.Recognizer.PartialInterval <= 0 {
		return nil, fmt.Errorf("recognizer.partial_interval_ms must be > 0")
	}
	if cfg.Recognizer.ListenWindow <= 0 {
		return nil, fmt.Errorf("recognizer.listen_window_ms must be > 0")
	}
	if cfg.Model.DownloadTimeout <= 0 {
		return nil, fmt.Errorf("model.download_timeout_ms must be > 0")
	}
	if cfg.Remote.DialTimeout <= 0 {
		return nil, fmt.Errorf("remote.dial_timeout_ms must be > 0")
	}
	if cfg.Remote.CallTimeout <= 0 {
		return nil, fmt.Errorf("remote.call_timeout_ms must be > 0")
	}

	if _, _, err := net.SplitHostPort(cfg.Channel.Addr); err != nil {
		return nil, fmt.Errorf("channel.addr must be host:port: %w", err)
	}

	if strings.TrimSpace(cfg.Remote.GRPC) == "" {
		warnings = append(warnings, Warning{Message: "remote.grpc is empty; network recognition is disabled"})
	}
	if strings.TrimSpace(cfg.Model.Dir) == "" {
		warnings = append(warnings, Warning{Message: "model.dir is empty; offline recognition is disabled"})
	}
	if cfg.Sounds.Enable && len(cfg.Sounds.Acks) == 0 {
		warnings = append(warnings, Warning{Message: "sounds.acks is empty; dispatches will be silent"})
	}
	if cfg.Test.Enable && strings.TrimSpace(cfg.Test.Text) == "" {
		warnings = append(warnings, Warning{Message: "test mode is enabled with empty canned text"})
	}

	return warnings, nil
}
