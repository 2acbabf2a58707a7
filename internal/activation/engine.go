// Package activation runs the wake-to-dispatch cycle: it watches recognition
// results for a wake phrase, captures the command that follows, and
// dispatches the matching command table entry.
package activation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/jarvis/internal/action"
	"github.com/rbright/jarvis/internal/channel"
	"github.com/rbright/jarvis/internal/commands"
	"github.com/rbright/jarvis/internal/fsm"
	"github.com/rbright/jarvis/internal/match"
	"github.com/rbright/jarvis/internal/recognizer"
)

const (
	defaultCommandMax   = 4 * time.Second
	defaultRestartDelay = time.Second
)

// Commands is the engine-facing view of the command table store.
type Commands interface {
	Table() *commands.Table
	Reload() (*commands.Table, error)
}

// Executor performs a matched command entry.
type Executor interface {
	Execute(context.Context, commands.Entry) action.Outcome
}

// Sounds plays activation feedback.
type Sounds interface {
	Greet()
	Ack()
}

// Publisher fans events out to channel subscribers. Status events are
// published while the engine lock is held, so Publish must not block or call
// back into the engine.
type Publisher interface {
	Publish(channel.Message)
}

// Options wires an Engine.
type Options struct {
	Backend   recognizer.Backend
	Commands  Commands
	Executor  Executor
	Sounds    Sounds
	Publisher Publisher
	Logger    *slog.Logger

	Wake          match.Wake
	Debounce      time.Duration
	ResponseDelay time.Duration
	CommandMax    time.Duration
	// RestartDelay is the pause before Listen is retried after an audio failure.
	RestartDelay time.Duration

	Now   func() time.Time
	NewID func() string
}

// Engine owns the activation state. Only the fields under mu are shared
// between the ingestion goroutine and cycle workers.
type Engine struct {
	backend   recognizer.Backend
	commands  Commands
	executor  Executor
	sounds    Sounds
	publisher Publisher
	logger    *slog.Logger

	wake          match.Wake
	debounce      time.Duration
	responseDelay time.Duration
	commandMax    time.Duration
	restartDelay  time.Duration

	now   func() time.Time
	newID func() string

	mu             sync.Mutex
	state          fsm.State
	lastActivation time.Time
	capturing      bool
	base           context.Context

	cycles sync.WaitGroup
}

// New builds an idle engine.
func New(opts Options) *Engine {
	if opts.CommandMax <= 0 {
		opts.CommandMax = defaultCommandMax
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Sounds == nil {
		opts.Sounds = silent{}
	}
	if opts.Publisher == nil {
		opts.Publisher = discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		backend:       opts.Backend,
		commands:      opts.Commands,
		executor:      opts.Executor,
		sounds:        opts.Sounds,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
		wake:          opts.Wake,
		debounce:      opts.Debounce,
		responseDelay: opts.ResponseDelay,
		commandMax:    opts.CommandMax,
		restartDelay:  opts.RestartDelay,
		now:           opts.Now,
		newID:         opts.NewID,
		state:         fsm.StateIdle,
		base:          context.Background(),
	}
}

// State returns the current FSM state snapshot.
func (e *Engine) State() fsm.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run drives the backend until ctx ends. Listen failures are logged and
// retried after RestartDelay.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.base = ctx
	e.mu.Unlock()

	e.logger.Info("listening for wake phrase", "backend", e.backend.Name(), "phrases", e.wake.Phrases)
	for {
		err := e.backend.Listen(ctx, e.HandleResult)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			e.logger.Warn("recognition stopped; restarting", "backend", e.backend.Name(), "error", err.Error())
		}

		timer := time.NewTimer(e.restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Wait blocks until every in-flight cycle has returned.
func (e *Engine) Wait() {
	e.cycles.Wait()
}

// HandleResult checks one recognition result for a wake phrase and starts a
// cycle when it qualifies. It never blocks on the cycle itself.
func (e *Engine) HandleResult(result recognizer.Result) {
	text := strings.TrimSpace(result.Text)
	if text == "" || !match.IsWake(text, e.wake) {
		return
	}

	id, ok := e.begin(fsm.EventWake, true)
	if !ok {
		return
	}
	e.logger.Info("wake detected", "cycle_id", id, "text", text, "final", result.Final)
	e.spawn(id)
}

// Listen starts an on-demand cycle that skips wake detection and debounce.
// It reports false when a cycle is already running.
func (e *Engine) Listen() bool {
	id, ok := e.begin(fsm.EventListen, false)
	if !ok {
		return false
	}
	e.logger.Info("on-demand listen requested", "cycle_id", id)
	e.spawn(id)
	return true
}

// ReloadCommands re-reads the command table. The previous table stays active
// on failure.
func (e *Engine) ReloadCommands() (int, error) {
	table, err := e.commands.Reload()
	if err != nil {
		e.logger.Warn("command table reload failed", "error", err.Error())
		return table.Len(), err
	}
	return table.Len(), nil
}

// begin is the single critical section guarding debounce and capture
// ownership. On success the engine has left Idle and owns the capture.
func (e *Engine) begin(event fsm.Event, debounced bool) (string, bool) {
	e.mu.Lock()
	if e.capturing {
		e.mu.Unlock()
		e.logger.Debug("activation ignored; cycle in progress", "event", string(event))
		return "", false
	}

	now := e.now()
	if debounced && !e.lastActivation.IsZero() && now.Sub(e.lastActivation) <= e.debounce {
		e.mu.Unlock()
		e.logger.Debug("activation ignored; debounce", "event", string(event))
		return "", false
	}

	next, err := fsm.Transition(e.state, event)
	if err != nil {
		e.mu.Unlock()
		e.logger.Debug("activation ignored", "error", err.Error())
		return "", false
	}
	e.state = next
	e.capturing = true
	if debounced {
		e.lastActivation = now
	}
	e.publisher.Publish(channel.Status(string(next)))
	e.mu.Unlock()

	return e.newID(), true
}

func (e *Engine) spawn(id string) {
	e.mu.Lock()
	ctx := e.base
	e.mu.Unlock()

	e.cycles.Add(1)
	go e.runCycle(ctx, id)
}

// runCycle is the Activating → Capturing → Idle sequence. Any failure,
// including a panic, returns the engine to Idle.
func (e *Engine) runCycle(ctx context.Context, id string) {
	defer e.cycles.Done()
	logger := e.logger.With("cycle_id", id)
	started := e.now()

	outcome := fsm.EventFail
	defer func() {
		if r := recover(); r != nil {
			logger.Error("activation cycle failed", "panic", fmt.Sprint(r))
			outcome = fsm.EventFail
		}
		e.finish(outcome)
		logger.Debug("activation cycle finished", "outcome", string(outcome), "duration_ms", e.now().Sub(started).Milliseconds())
	}()

	e.sounds.Greet()
	if !sleepCtx(ctx, e.responseDelay) {
		return
	}
	if err := e.transition(fsm.EventCapture); err != nil {
		logger.Warn("activation cycle aborted", "error", err.Error())
		return
	}

	result := e.backend.Capture(ctx, e.commandMax)
	text := strings.TrimSpace(result.Text)
	logger.Info("command captured", "text", text)
	e.publisher.Publish(channel.Transcript(text))

	if text != "" {
		e.dispatch(ctx, logger, id, text)
	}
	outcome = fsm.EventComplete
}

func (e *Engine) dispatch(ctx context.Context, logger *slog.Logger, id string, text string) {
	entry, ok := match.Command(text, e.commands.Table())
	if !ok {
		logger.Info("no command matched", "text", text)
		return
	}

	started := e.now()
	out := e.executor.Execute(ctx, entry)
	e.publisher.Publish(channel.Dispatch(id, entry.Trigger, string(entry.Kind()), entry.Args, out.OK, out.Message))
	logger.Info("command executed",
		"trigger", entry.Trigger,
		"kind", string(entry.Kind()),
		"ok", out.OK,
		"duration_ms", e.now().Sub(started).Milliseconds(),
	)
	if out.OK {
		e.sounds.Ack()
	}
}

func (e *Engine) transition(event fsm.Event) error {
	e.mu.Lock()
	next, err := fsm.Transition(e.state, event)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.state = next
	e.publisher.Publish(channel.Status(string(next)))
	e.mu.Unlock()
	return nil
}

// finish releases capture ownership and returns to Idle.
func (e *Engine) finish(event fsm.Event) {
	e.mu.Lock()
	next, err := fsm.Transition(e.state, event)
	if err != nil {
		next = fsm.StateIdle
	}
	e.state = next
	e.capturing = false
	e.publisher.Publish(channel.Status(string(next)))
	e.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type silent struct{}

func (silent) Greet() {}
func (silent) Ack()   {}

type discard struct{}

func (discard) Publish(channel.Message) {}
