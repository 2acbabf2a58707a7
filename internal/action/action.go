// Package action dispatches resolved command entries to side effects.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	execute "github.com/alexellis/go-execute/v2"
	"github.com/pkg/browser"
	"github.com/rbright/jarvis/internal/commands"
)

// DefaultURL is opened by open_browser and by open_url without arguments.
const DefaultURL = "https://www.google.com"

// Outcome is the reported result of one dispatch.
type Outcome struct {
	OK      bool
	Message string
}

func failed(format string, args ...any) Outcome {
	return Outcome{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Opener opens URLs and filesystem paths with the desktop handler.
type Opener interface {
	OpenURL(string) error
	OpenPath(string) error
}

// Launcher starts a shell command line without waiting for it to finish.
type Launcher interface {
	Launch(context.Context, string) error
}

// Executor maps command entries to opener/launcher calls.
type Executor struct {
	logger   *slog.Logger
	opener   Opener
	launcher Launcher
}

// NewExecutor wires an executor; nil collaborators fall back to the
// desktop opener and the platform shell.
func NewExecutor(logger *slog.Logger, opener Opener, launcher Launcher) *Executor {
	if opener == nil {
		opener = BrowserOpener{}
	}
	if launcher == nil {
		launcher = NewShellLauncher(logger)
	}
	return &Executor{logger: logger, opener: opener, launcher: launcher}
}

// Execute performs the entry's action. It never panics or returns an
// error; failures are reported through the Outcome.
func (e *Executor) Execute(ctx context.Context, entry commands.Entry) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed("%s: %v", entry.Trigger, r)
		}
		e.log(entry, out)
	}()

	switch entry.Kind() {
	case commands.KindOpenBrowser:
		return e.openURL(DefaultURL)
	case commands.KindOpenURL:
		target := DefaultURL
		if len(entry.Args) > 0 && strings.TrimSpace(entry.Args[0]) != "" {
			target = strings.TrimSpace(entry.Args[0])
		}
		return e.openURL(target)
	case commands.KindOpenPath:
		if len(entry.Args) == 0 || strings.TrimSpace(entry.Args[0]) == "" {
			return failed("open_path requires a path argument")
		}
		path := strings.TrimSpace(entry.Args[0])
		if err := e.opener.OpenPath(path); err != nil {
			return failed("open path %q: %v", path, err)
		}
		return Outcome{OK: true, Message: fmt.Sprintf("opened %s", path)}
	case commands.KindShell:
		line := strings.TrimSpace(entry.Action)
		if line == "" {
			return failed("shell action is empty")
		}
		if err := e.launcher.Launch(ctx, line); err != nil {
			return failed("launch %q: %v", line, err)
		}
		return Outcome{OK: true, Message: fmt.Sprintf("launched %q", line)}
	default:
		if strings.EqualFold(strings.TrimSpace(entry.Type), commands.TypeBuiltin) {
			return failed("unknown builtin action %q", entry.Action)
		}
		return failed("unknown command type %q", entry.Type)
	}
}

func (e *Executor) openURL(target string) Outcome {
	if err := e.opener.OpenURL(target); err != nil {
		return failed("open url %q: %v", target, err)
	}
	return Outcome{OK: true, Message: fmt.Sprintf("opened %s", target)}
}

func (e *Executor) log(entry commands.Entry, out Outcome) {
	if e.logger == nil {
		return
	}
	fields := []any{
		"trigger", entry.Trigger,
		"kind", entry.Kind(),
		"ok", out.OK,
		"message", out.Message,
	}
	if out.OK {
		e.logger.Info("command dispatched", fields...)
		return
	}
	e.logger.Warn("command dispatch failed", fields...)
}

// BrowserOpener delegates to the desktop's default handlers.
type BrowserOpener struct{}

func (BrowserOpener) OpenURL(target string) error {
	return browser.OpenURL(target)
}

func (BrowserOpener) OpenPath(path string) error {
	return browser.OpenFile(path)
}

// ShellLauncher runs command lines through the platform shell in the
// background. Only the spawn preconditions are checked synchronously.
type ShellLauncher struct {
	logger *slog.Logger
	goos   string
}

// NewShellLauncher returns a launcher for the running platform.
func NewShellLauncher(logger *slog.Logger) ShellLauncher {
	return ShellLauncher{logger: logger, goos: runtime.GOOS}
}

// Launch starts line and returns once the shell binary is known to exist.
func (l ShellLauncher) Launch(_ context.Context, line string) error {
	name, args := shellCommand(l.goos, line)
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("shell %q unavailable: %w", name, err)
	}

	task := execute.ExecTask{
		Command:     name,
		Args:        args,
		StreamStdio: false,
	}

	go func() {
		started := time.Now()
		res, err := task.Execute(context.Background())
		if l.logger == nil {
			return
		}
		if err != nil {
			l.logger.Warn("shell command failed", "command", line, "error", err.Error())
			return
		}
		l.logger.Debug("shell command exited",
			"command", line,
			"exit_code", res.ExitCode,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}()
	return nil
}

// shellCommand returns the argv that runs line through the platform shell.
func shellCommand(goos string, line string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "/bin/bash", []string{"-c", line}
}
