// Package app wires configuration, logging, and runtime components behind
// the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/jarvis/internal/action"
	"github.com/rbright/jarvis/internal/activation"
	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/channel"
	"github.com/rbright/jarvis/internal/cli"
	"github.com/rbright/jarvis/internal/commands"
	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/doctor"
	"github.com/rbright/jarvis/internal/indicator"
	"github.com/rbright/jarvis/internal/logging"
	"github.com/rbright/jarvis/internal/match"
	"github.com/rbright/jarvis/internal/model"
	"github.com/rbright/jarvis/internal/recognizer"
	"github.com/rbright/jarvis/internal/remote"
	"github.com/rbright/jarvis/internal/version"
	"github.com/spf13/afero"
)

const (
	channelProbeTimeout = 500 * time.Millisecond
	listenReplyMargin   = 5 * time.Second
)

// Runner implements cli.Handlers against real process resources.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Logger overrides the file logger when set.
	Logger *slog.Logger
	Fs     afero.Fs
	// Environ is consulted for JARVIS_* overrides. Defaults to os.Environ().
	Environ []string
	// DotEnv is loaded before the environment is read. Empty skips it.
	DotEnv string
}

// Execute runs the CLI against the process streams and returns the exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr, DotEnv: ".env"}
	return r.Execute(ctx, args)
}

// Execute parses args and dispatches to the matching handler.
func (r Runner) Execute(ctx context.Context, args []string) int {
	root := cli.NewRootCommand(r)
	root.SetArgs(args)
	root.SetOut(r.Stdout)
	root.SetErr(r.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	code := cli.ExitCode(err)
	if code == 2 {
		fmt.Fprintln(r.Stderr)
		fmt.Fprint(r.Stderr, root.UsageString())
	}
	return code
}

type session struct {
	loaded  config.Loaded
	logger  *slog.Logger
	logPath string
	close   func()
}

func (r Runner) fs() afero.Fs {
	if r.Fs == nil {
		return afero.NewOsFs()
	}
	return r.Fs
}

// setup loads the environment, logging and config shared by every command
// except version. console tees log records to stderr.
func (r Runner) setup(opts cli.Options, console bool) (session, error) {
	if r.DotEnv != "" {
		if err := config.LoadDotEnv(r.DotEnv); err != nil {
			fmt.Fprintf(r.Stderr, "warning: %v\n", err)
		}
	}

	logOpts := logging.Options{Verbose: opts.Verbose}
	if console {
		logOpts.Console = r.Stderr
	}
	logRuntime, err := logging.New(logOpts)
	if err != nil {
		return session{}, fmt.Errorf("setup logging: %w", err)
	}

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	environ := r.Environ
	if environ == nil {
		environ = os.Environ()
	}
	loaded, err := config.Load(opts.ConfigPath, environ)
	if err != nil {
		_ = logRuntime.Close()
		logger.Error("load config failed", "error", err.Error())
		return session{}, err
	}

	if opts.Test {
		loaded.Config.Test.Enable = true
	}
	if opts.TestTextSet {
		loaded.Config.Test.Text = opts.TestText
	}
	if loaded.Config.Test.Enable && strings.TrimSpace(loaded.Config.Test.Text) == "" {
		loaded.Config.Test.Text = config.DefaultTestText
	}

	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	return session{
		loaded:  loaded,
		logger:  logger,
		logPath: logRuntime.Path,
		close:   func() { _ = logRuntime.Close() },
	}, nil
}

// Run starts the daemon and blocks until ctx ends.
func (r Runner) Run(ctx context.Context, opts cli.Options) error {
	s, err := r.setup(opts, true)
	if err != nil {
		return err
	}
	defer s.close()

	cfg := s.loaded.Config
	logger := s.logger
	logger.Info("command start", "command", "run", "config", s.loaded.Path, "log", s.logPath, "version", version.String())

	listener, err := channel.Listen(ctx, cfg.Channel.Addr, channelProbeTimeout)
	if err != nil {
		if errors.Is(err, channel.ErrAlreadyRunning) {
			return fmt.Errorf("%w on %s", err, cfg.Channel.Addr)
		}
		return err
	}
	defer func() { _ = listener.Close() }()

	store, err := commands.NewStore(r.fs(), cfg.Commands.Path, logger)
	if err != nil {
		return err
	}

	player := indicator.New(indicator.Options{
		Enable:   cfg.Sounds.Enable,
		Dir:      cfg.Sounds.Dir,
		Greeting: cfg.Sounds.Greeting,
		Acks:     cfg.Sounds.Acks,
		Fs:       r.fs(),
		Logger:   logger,
	})
	if err := player.Probe(ctx); err != nil {
		logger.Warn("sound playback disabled", "error", err.Error())
	}
	defer player.Wait()

	selection, err := r.negotiate(ctx, cfg, s.logPath, logger)
	if err != nil {
		logger.Error("no recognition backend", "error", err.Error())
		return err
	}
	defer func() { _ = selection.Close() }()
	for _, reason := range selection.Reasons {
		logger.Warn("recognition backend skipped", "reason", reason)
	}

	hub := channel.NewHub(logger)
	engine := activation.New(activation.Options{
		Backend:   selection.Backend,
		Commands:  store,
		Executor:  action.NewExecutor(logger, nil, nil),
		Sounds:    player,
		Publisher: hub,
		Logger:    logger,
		Wake: match.Wake{
			Phrases:   cfg.Wake.Phrases,
			Threshold: cfg.Wake.Threshold,
		},
		Debounce:      cfg.Wake.Debounce,
		ResponseDelay: cfg.Wake.ResponseDelay,
		CommandMax:    cfg.Wake.CommandMax,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- hub.Serve(runCtx, listener, engine)
	}()
	go reloadOnHangup(runCtx, engine, logger)

	logger.Info("channel listening", "addr", listener.Addr().String(), "triggers", store.Table().Len())
	runErr := engine.Run(runCtx)
	cancel()
	engine.Wait()

	if err := <-serveErr; err != nil {
		return err
	}
	return runErr
}

func (r Runner) negotiate(ctx context.Context, cfg config.Config, logPath string, logger *slog.Logger) (recognizer.Selection, error) {
	var dump *recognizer.Dumper
	if cfg.Debug.EnableAudioDump {
		dump = recognizer.NewDumper(r.fs(), filepath.Join(filepath.Dir(logPath), "audio"), logger)
	}

	return recognizer.Negotiate(ctx, recognizer.Options{
		TestMode:        cfg.Test.Enable,
		TestText:        cfg.Test.Text,
		Prefer:          cfg.Recognizer.Prefer,
		SampleRate:      cfg.Audio.SampleRate,
		PartialInterval: cfg.Recognizer.PartialInterval,
		ListenWindow:    cfg.Recognizer.ListenWindow,
		Dump:            dump,
		Logger:          logger,
		Source: audio.PulseSource{
			Input:      cfg.Audio.Input,
			Fallback:   cfg.Audio.Fallback,
			SampleRate: cfg.Audio.SampleRate,
			Logger:     logger,
		},
		Device: func(ctx context.Context) error {
			selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
			if err != nil {
				return err
			}
			if selection.Warning != "" {
				logger.Warn(selection.Warning)
			}
			logger.Info("audio device selected", "device", selection.Device.Describe(), "fallback", selection.Fallback)
			return nil
		},
		Offline: func(ctx context.Context) (recognizer.Transcriber, error) {
			assets := model.Assets{
				Fs:           r.fs(),
				Dir:          cfg.Model.Dir,
				URL:          cfg.Model.URL,
				AutoDownload: cfg.Model.AutoDownload,
				Timeout:      cfg.Model.DownloadTimeout,
				Logger:       logger,
				Progress:     r.Stderr,
			}
			file, err := assets.Ensure(ctx)
			if err != nil {
				return nil, err
			}
			engine, err := recognizer.NewOffline(file)
			if err != nil {
				return nil, err
			}
			logger.Info("offline recognizer ready", "model", file)
			return engine, nil
		},
		Remote: func(ctx context.Context) (recognizer.Transcriber, error) {
			client, err := remote.Dial(ctx, remote.Config{
				Endpoint:    cfg.Remote.GRPC,
				Language:    cfg.Recognizer.Language,
				DialTimeout: cfg.Remote.DialTimeout,
				CallTimeout: cfg.Remote.CallTimeout,
			})
			if err != nil {
				return nil, err
			}
			logger.Info("remote recognizer ready", "endpoint", client.Endpoint())
			return client, nil
		},
	})
}

func reloadOnHangup(ctx context.Context, engine *activation.Engine, logger *slog.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			logger.Debug("SIGHUP received; reloading command table")
			_, _ = engine.ReloadCommands()
		}
	}
}

// Listen asks the running daemon for an on-demand capture and prints the
// transcript.
func (r Runner) Listen(ctx context.Context, opts cli.Options) error {
	s, err := r.setup(opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	cfg := s.loaded.Config
	waitCtx, cancel := context.WithTimeout(ctx, cfg.Wake.ResponseDelay+cfg.Wake.CommandMax+listenReplyMargin)
	defer cancel()

	reply, err := channel.Send(waitCtx, cfg.Channel.Addr, channel.Message{Type: channel.TypeStartListen}, func(m channel.Message) bool {
		switch m.Type {
		case channel.TypeTranscript, channel.TypeError:
			return true
		case channel.TypeStatus:
			return m.State == activation.BusyState
		}
		return false
	})
	if err != nil {
		if channel.IsNotRunning(err) {
			return fmt.Errorf("jarvis is not running on %s", cfg.Channel.Addr)
		}
		return err
	}

	switch reply.Type {
	case channel.TypeError:
		return errors.New(reply.Error)
	case channel.TypeStatus:
		return fmt.Errorf("jarvis is busy: %s", reply.Message)
	}
	fmt.Fprintln(r.Stdout, reply.TextValue())
	return nil
}

// Status prints the daemon state, or "not running".
func (r Runner) Status(ctx context.Context, opts cli.Options) error {
	s, err := r.setup(opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	greeting, alive, err := channel.Probe(ctx, s.loaded.Config.Channel.Addr, channelProbeTimeout)
	if err != nil {
		return err
	}
	if !alive {
		fmt.Fprintln(r.Stdout, "not running")
		return nil
	}
	fmt.Fprintln(r.Stdout, greeting.State)
	return nil
}

// Commands prints the command table in match order.
func (r Runner) Commands(_ context.Context, opts cli.Options) error {
	s, err := r.setup(opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	table, err := commands.Read(r.fs(), s.loaded.Config.Commands.Path)
	if err != nil {
		return err
	}
	for i, entry := range table.Entries() {
		line := fmt.Sprintf("%2d. %-20s %-12s", i+1, entry.Trigger, entry.Kind())
		switch entry.Kind() {
		case commands.KindShell:
			line += " " + entry.Action
		default:
			if len(entry.Args) > 0 {
				line += " " + strings.Join(entry.Args, " ")
			}
		}
		fmt.Fprintln(r.Stdout, strings.TrimRight(line, " "))
	}
	return nil
}

// Match prints the wake verdict for text and the trigger it would dispatch.
func (r Runner) Match(_ context.Context, opts cli.Options, text string) error {
	s, err := r.setup(opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	cfg := s.loaded.Config
	wake := match.IsWake(text, match.Wake{Phrases: cfg.Wake.Phrases, Threshold: cfg.Wake.Threshold})
	fmt.Fprintf(r.Stdout, "wake: %t\n", wake)

	table, err := commands.Read(r.fs(), cfg.Commands.Path)
	if err != nil {
		return err
	}
	entry, ok := match.Command(text, table)
	if !ok {
		fmt.Fprintln(r.Stdout, "command: none")
		return nil
	}
	fmt.Fprintf(r.Stdout, "command: %s (%s)\n", entry.Trigger, entry.Kind())
	return nil
}

// Devices lists Pulse input sources.
func (r Runner) Devices(ctx context.Context, opts cli.Options) error {
	s, err := r.setup(opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("no audio devices found")
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}
	return nil
}

// errDoctorFailed is returned after a failing report has been printed.
var errDoctorFailed = errors.New("doctor checks failed")

// Doctor prints readiness diagnostics.
func (r Runner) Doctor(ctx context.Context, opts cli.Options) error {
	s, err := r.setup(opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	report := doctor.Run(ctx, s.loaded)
	fmt.Fprintln(r.Stdout, report.String())
	if !report.OK() {
		return errDoctorFailed
	}
	return nil
}

// Version prints the build version.
func (r Runner) Version(context.Context, cli.Options) error {
	fmt.Fprintln(r.Stdout, version.String())
	return nil
}
