package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Dial connects to the channel at addr.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, "ws://"+addr+"/ws", nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Send delivers msg to the channel at addr. When wait is non-nil, Send keeps
// reading until wait accepts a message and returns it. The greeting status
// is consumed before msg is sent.
func Send(ctx context.Context, addr string, msg Message, wait func(Message) bool) (Message, error) {
	conn, err := Dial(ctx, addr, 2*time.Second)
	if err != nil {
		return Message{}, fmt.Errorf("connect channel %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var greeting Message
	if err := conn.ReadJSON(&greeting); err != nil {
		return Message{}, readErr(ctx, "read greeting", err)
	}

	if err := conn.WriteJSON(msg); err != nil {
		return Message{}, fmt.Errorf("send %s: %w", msg.Type, err)
	}
	if wait == nil {
		return Message{}, nil
	}

	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			return Message{}, readErr(ctx, "read reply", err)
		}
		if wait(in) {
			return in, nil
		}
	}
}

func readErr(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", what, ctxErr)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Probe reports whether a jarvis daemon answers on addr and returns its
// greeting status. A refused connection is (false, nil).
func Probe(ctx context.Context, addr string, timeout time.Duration) (Message, bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := Dial(probeCtx, addr, timeout)
	if err != nil {
		if IsNotRunning(err) {
			return Message{}, false, nil
		}
		return Message{}, false, fmt.Errorf("probe channel %s: %w", addr, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var greeting Message
	if err := conn.ReadJSON(&greeting); err != nil {
		return Message{}, false, fmt.Errorf("read greeting: %w", err)
	}
	if greeting.Type != TypeStatus {
		return greeting, false, fmt.Errorf("unexpected greeting %q", greeting.Type)
	}
	return greeting, true, nil
}

// IsNotRunning reports a refused connection, meaning no daemon listens.
func IsNotRunning(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
