// Package indicator plays the greeting and acknowledgment sounds.
package indicator

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

const playTimeout = 5 * time.Second

// Options configures a Player.
type Options struct {
	Enable   bool
	Dir      string
	Greeting string
	Acks     []string

	Fs     afero.Fs
	Sink   Sink
	Logger *slog.Logger
	// Pick returns a value in [0, n). Defaults to math/rand/v2.
	Pick func(n int) int
}

// Player plays named sound files asynchronously, one at a time. A missing or
// unreadable file is skipped.
type Player struct {
	dir      string
	greeting string
	acks     []string

	fs     afero.Fs
	sink   Sink
	logger *slog.Logger
	pick   func(int) int

	enabled atomic.Bool
	soundMu sync.Mutex
	pending sync.WaitGroup
}

// New builds a player.
func New(opts Options) *Player {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Sink == nil {
		opts.Sink = PulseSink{}
	}
	if opts.Pick == nil {
		opts.Pick = rand.Intn
	}
	p := &Player{
		dir:      expandUserPath(opts.Dir),
		greeting: opts.Greeting,
		acks:     append([]string(nil), opts.Acks...),
		fs:       opts.Fs,
		sink:     opts.Sink,
		logger:   opts.Logger,
		pick:     opts.Pick,
	}
	p.enabled.Store(opts.Enable)
	return p
}

// Probe disables playback when no output is reachable.
func (p *Player) Probe(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.sink.Probe(ctx); err != nil {
		p.Disable()
		if p.logger != nil {
			p.logger.Warn("sound playback unavailable; continuing without sounds", "error", err.Error())
		}
		return err
	}
	return nil
}

// Enabled reports whether sounds will be played.
func (p *Player) Enabled() bool {
	return p.enabled.Load()
}

// Disable turns playback off.
func (p *Player) Disable() {
	p.enabled.Store(false)
}

// Greet plays the activation greeting.
func (p *Player) Greet() {
	p.Play(p.greeting)
}

// Ack plays one acknowledgment sound chosen at random.
func (p *Player) Ack() {
	if len(p.acks) == 0 {
		return
	}
	p.Play(p.acks[p.pick(len(p.acks))])
}

// Play queues name for playback and returns immediately.
func (p *Player) Play(name string) {
	name = strings.TrimSpace(name)
	if name == "" || !p.Enabled() {
		return
	}

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.soundMu.Lock()
		defer p.soundMu.Unlock()
		p.playNow(name)
	}()
}

// Wait blocks until queued sounds have finished.
func (p *Player) Wait() {
	p.pending.Wait()
}

func (p *Player) playNow(name string) {
	path := p.resolve(name)
	file, err := p.fs.Open(path)
	if err != nil {
		p.debug("sound file unavailable", path, err)
		return
	}
	defer file.Close()

	samples, rate, err := decodeWAV(file)
	if err != nil {
		p.debug("sound file unreadable", path, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()
	if err := p.sink.Play(ctx, samples, rate); err != nil {
		p.debug("sound playback failed", path, err)
	}
}

func (p *Player) resolve(name string) string {
	name = expandUserPath(name)
	if filepath.IsAbs(name) || p.dir == "" {
		return name
	}
	return filepath.Join(p.dir, name)
}

func (p *Player) debug(message string, path string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(message, "path", path, "error", err.Error())
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if raw == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return raw
		}
		return home
	}
	if !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~/"))
}
