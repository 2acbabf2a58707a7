package activation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/jarvis/internal/action"
	"github.com/rbright/jarvis/internal/channel"
	"github.com/rbright/jarvis/internal/commands"
	"github.com/rbright/jarvis/internal/fsm"
	"github.com/rbright/jarvis/internal/match"
	"github.com/rbright/jarvis/internal/recognizer"
	"github.com/stretchr/testify/require"
)

var defaultWake = match.Wake{
	Phrases:   []string{"jarvis", "hey jarvis", "jervis", "hey jervis"},
	Threshold: 0.58,
}

type fakeBackend struct {
	text    string
	release chan struct{}
	panics  bool

	captures atomic.Int32
	listens  atomic.Int32
	listen   func(ctx context.Context, sink func(recognizer.Result), call int32) error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Listen(ctx context.Context, sink func(recognizer.Result)) error {
	call := f.listens.Add(1)
	if f.listen != nil {
		return f.listen(ctx, sink, call)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeBackend) Capture(ctx context.Context, _ time.Duration) recognizer.Result {
	f.captures.Add(1)
	if f.panics {
		panic("capture exploded")
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	return recognizer.Result{Text: f.text, Final: true, At: time.Now()}
}

type fakeExecutor struct {
	mu      sync.Mutex
	entries []commands.Entry
	outcome action.Outcome
}

func (f *fakeExecutor) Execute(_ context.Context, entry commands.Entry) action.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.outcome
}

func (f *fakeExecutor) executed() []commands.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]commands.Entry(nil), f.entries...)
}

type fakeSounds struct {
	greets atomic.Int32
	acks   atomic.Int32
}

func (f *fakeSounds) Greet() { f.greets.Add(1) }
func (f *fakeSounds) Ack()   { f.acks.Add(1) }

type recordingPublisher struct {
	mu       sync.Mutex
	messages []channel.Message
}

func (r *recordingPublisher) Publish(msg channel.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingPublisher) snapshot() []channel.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]channel.Message(nil), r.messages...)
}

func (r *recordingPublisher) ofType(kind string) []channel.Message {
	var out []channel.Message
	for _, msg := range r.snapshot() {
		if msg.Type == kind {
			out = append(out, msg)
		}
	}
	return out
}

type fakeCommands struct {
	table     *commands.Table
	reloadErr error
	reloads   atomic.Int32
}

func (f *fakeCommands) Table() *commands.Table { return f.table }

func (f *fakeCommands) Reload() (*commands.Table, error) {
	f.reloads.Add(1)
	return f.table, f.reloadErr
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine    *Engine
	backend   *fakeBackend
	executor  *fakeExecutor
	sounds    *fakeSounds
	publisher *recordingPublisher
	commands  *fakeCommands
	clock     *fakeClock
}

func newHarness(t *testing.T, backend *fakeBackend) *harness {
	t.Helper()
	h := &harness{
		backend:   backend,
		executor:  &fakeExecutor{outcome: action.Outcome{OK: true, Message: "opened"}},
		sounds:    &fakeSounds{},
		publisher: &recordingPublisher{},
		commands:  &fakeCommands{table: commands.Default()},
		clock:     newFakeClock(),
	}
	var ids atomic.Int32
	h.engine = New(Options{
		Backend:      backend,
		Commands:     h.commands,
		Executor:     h.executor,
		Sounds:       h.sounds,
		Publisher:    h.publisher,
		Wake:         defaultWake,
		Debounce:     500 * time.Millisecond,
		CommandMax:   time.Second,
		RestartDelay: 10 * time.Millisecond,
		Now:          h.clock.Now,
		NewID: func() string {
			return "cycle-" + string(rune('0'+ids.Add(1)))
		},
	})
	t.Cleanup(h.engine.Wait)
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func waitIdle(t *testing.T, e *Engine) {
	t.Helper()
	e.Wait()
	require.Equal(t, fsm.StateIdle, e.State())
}

var errListen = errors.New("device unplugged")
