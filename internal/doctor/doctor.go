// Package doctor runs runtime readiness diagnostics for config, commands,
// audio, sounds, and the recognition engines.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/channel"
	"github.com/rbright/jarvis/internal/commands"
	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/model"
	"github.com/rbright/jarvis/internal/recognizer"
	"github.com/rbright/jarvis/internal/remote"
	"github.com/spf13/afero"
)

const channelProbeTimeout = 500 * time.Millisecond

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// probes are the side-effecting lookups Run performs.
type probes struct {
	fs              afero.Fs
	goos            string
	offlineCompiled bool
	selectDevice    func(ctx context.Context, input, fallback string) (audio.Selection, error)
	probeRemote     func(ctx context.Context, cfg remote.Config) error
	probeChannel    func(ctx context.Context, addr string, timeout time.Duration) (channel.Message, bool, error)
}

func defaultProbes() probes {
	return probes{
		fs:              afero.NewOsFs(),
		goos:            runtime.GOOS,
		offlineCompiled: recognizer.OfflineCompiled,
		selectDevice:    audio.SelectDevice,
		probeRemote:     remote.Probe,
		probeChannel:    channel.Probe,
	}
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	return run(ctx, loaded, defaultProbes())
}

func run(ctx context.Context, loaded config.Loaded, p probes) Report {
	cfg := loaded.Config
	checks := []Check{}

	configMessage := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		configMessage = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMessage})

	checks = append(checks, checkCommandTable(p.fs, cfg.Commands.Path))
	checks = append(checks, checkShell(p.goos))
	checks = append(checks, checkSounds(p.fs, cfg.Sounds))

	if cfg.Test.Enable {
		checks = append(checks, Check{
			Name:    "recognizer",
			Pass:    true,
			Message: fmt.Sprintf("test mode; canned text %q", cfg.Test.Text),
		})
	} else {
		checks = append(checks, checkAudioSelection(ctx, cfg, p.selectDevice))
		offline := checkOfflineModel(p.fs, cfg.Model, p.offlineCompiled)
		network := checkRemote(ctx, cfg, p.probeRemote)
		checks = append(checks, offline, network)
		checks = append(checks, checkBackend(cfg.Recognizer.Prefer, offline, network))
	}

	checks = append(checks, checkChannel(ctx, cfg.Channel.Addr, p.probeChannel))
	return Report{Checks: checks}
}

// checkCommandTable parses the persisted table without seeding or repairing it.
func checkCommandTable(fs afero.Fs, path string) Check {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Check{Name: "commands", Pass: true, Message: fmt.Sprintf("%s missing; defaults will be written at startup", path)}
		}
		return Check{Name: "commands", Pass: false, Message: err.Error()}
	}
	table, err := commands.Parse(data)
	if err != nil {
		return Check{Name: "commands", Pass: false, Message: fmt.Sprintf("%s: %v (will be recreated at startup)", path, err)}
	}
	return Check{Name: "commands", Pass: true, Message: fmt.Sprintf("%d triggers in %s", table.Len(), path)}
}

// checkShell validates that shell commands have an interpreter.
func checkShell(goos string) Check {
	if goos == "windows" {
		return checkBinary("cmd", "shell commands run through cmd /C")
	}
	return checkBinary("/bin/bash", "shell commands run through bash -c")
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkSounds lists missing sound files. Missing files are skipped at runtime,
// so this never fails.
func checkSounds(fs afero.Fs, cfg config.SoundsConfig) Check {
	if !cfg.Enable {
		return Check{Name: "sounds", Pass: true, Message: "disabled"}
	}
	names := append([]string{cfg.Greeting}, cfg.Acks...)
	var present int
	var size int64
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		info, err := fs.Stat(filepath.Join(cfg.Dir, name))
		if err != nil {
			missing = append(missing, name)
			continue
		}
		present++
		size += info.Size()
	}
	message := fmt.Sprintf("%d sound files (%s) in %s", present, humanize.Bytes(uint64(size)), cfg.Dir)
	if len(missing) > 0 {
		message += fmt.Sprintf("; missing %s will be skipped", strings.Join(missing, ", "))
	}
	return Check{Name: "sounds", Pass: true, Message: message}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkOfflineModel(fs afero.Fs, cfg config.ModelConfig, compiled bool) Check {
	if !compiled {
		return Check{Name: "recognizer.offline", Pass: false, Message: recognizer.ErrOfflineUnavailable.Error()}
	}
	assets := model.Assets{Fs: fs, Dir: cfg.Dir, URL: cfg.URL, AutoDownload: cfg.AutoDownload}
	file, err := assets.ModelFile()
	if err != nil {
		if cfg.AutoDownload && cfg.URL != "" {
			return Check{Name: "recognizer.offline", Pass: true, Message: fmt.Sprintf("model missing; will download %s", cfg.URL)}
		}
		return Check{Name: "recognizer.offline", Pass: false, Message: err.Error()}
	}
	message := file
	if info, statErr := fs.Stat(file); statErr == nil {
		message = fmt.Sprintf("%s (%s)", file, humanize.Bytes(uint64(info.Size())))
	}
	return Check{Name: "recognizer.offline", Pass: true, Message: message}
}

func checkRemote(ctx context.Context, cfg config.Config, probe func(context.Context, remote.Config) error) Check {
	endpoint := strings.TrimSpace(cfg.Remote.GRPC)
	if endpoint == "" {
		return Check{Name: "recognizer.remote", Pass: false, Message: "remote.grpc is empty"}
	}
	err := probe(ctx, remote.Config{
		Endpoint:    endpoint,
		Language:    cfg.Recognizer.Language,
		DialTimeout: cfg.Remote.DialTimeout,
		CallTimeout: cfg.Remote.CallTimeout,
	})
	if err != nil {
		return Check{Name: "recognizer.remote", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognizer.remote", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

// checkBackend mirrors negotiation: one usable engine is enough.
func checkBackend(prefer string, offline, network Check) Check {
	switch prefer {
	case recognizer.PreferStreaming:
		return backendCheck(offline.Pass, "streaming (offline)")
	case recognizer.PreferUtterance:
		return backendCheck(network.Pass, "utterance (remote)")
	}
	if offline.Pass {
		return backendCheck(true, "streaming (offline)")
	}
	return backendCheck(network.Pass, "utterance (remote)")
}

func backendCheck(ok bool, name string) Check {
	if !ok {
		return Check{Name: "recognizer", Pass: false, Message: recognizer.ErrNoBackend.Error()}
	}
	return Check{Name: "recognizer", Pass: true, Message: "would select " + name}
}

func checkChannel(
	ctx context.Context,
	addr string,
	probe func(context.Context, string, time.Duration) (channel.Message, bool, error),
) Check {
	greeting, running, err := probe(ctx, addr, channelProbeTimeout)
	if err != nil {
		return Check{Name: "channel", Pass: false, Message: fmt.Sprintf("%s: %v", addr, err)}
	}
	if running {
		return Check{Name: "channel", Pass: true, Message: fmt.Sprintf("jarvis running on %s (%s)", addr, greeting.State)}
	}
	return Check{Name: "channel", Pass: true, Message: fmt.Sprintf("%s is free", addr)}
}
