package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// ErrAlreadyRunning means another jarvis daemon owns the channel address.
var ErrAlreadyRunning = errors.New("jarvis already running")

// Listen binds addr for the channel. When the port is taken it probes the
// owner and returns ErrAlreadyRunning if the owner is a jarvis daemon.
func Listen(ctx context.Context, addr string, probeTimeout time.Duration) (net.Listener, error) {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err == nil {
		return listener, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	if _, alive, _ := Probe(ctx, addr, probeTimeout); alive {
		return nil, ErrAlreadyRunning
	}
	return nil, fmt.Errorf("listen %s: address in use by another program: %w", addr, err)
}
