package activation

import (
	"context"
	"errors"
	"testing"

	"github.com/rbright/jarvis/internal/channel"
	"github.com/stretchr/testify/require"
)

func TestHandleStopListenIsNoOp(t *testing.T) {
	h := newHarness(t, &fakeBackend{})

	require.Nil(t, h.engine.Handle(context.Background(), channel.Message{Type: channel.TypeStopListen}))
	require.Empty(t, h.publisher.snapshot())
}

func TestHandleReloadCommands(t *testing.T) {
	h := newHarness(t, &fakeBackend{})

	reply := h.engine.Handle(context.Background(), channel.Message{Type: channel.TypeReloadCommands})
	require.NotNil(t, reply)
	require.Equal(t, channel.TypeStatus, reply.Type)
	require.Equal(t, "idle", reply.State)
	require.Equal(t, "reloaded 5 triggers", reply.Message)
	require.Equal(t, int32(1), h.commands.reloads.Load())

	h.commands.reloadErr = errors.New("malformed command table")
	reply = h.engine.Handle(context.Background(), channel.Message{Type: channel.TypeReloadCommands})
	require.NotNil(t, reply)
	require.Equal(t, channel.TypeError, reply.Type)
	require.Contains(t, reply.Error, "keeping 5 triggers")
	require.Contains(t, reply.Error, "malformed")
}

func TestHandleStatusAndUnknown(t *testing.T) {
	h := newHarness(t, &fakeBackend{})

	reply := h.engine.Handle(context.Background(), channel.Message{Type: channel.TypeStatus})
	require.NotNil(t, reply)
	require.Equal(t, "idle", reply.State)

	reply = h.engine.Handle(context.Background(), channel.Message{Type: "self_destruct"})
	require.NotNil(t, reply)
	require.Equal(t, channel.TypeError, reply.Type)
	require.Contains(t, reply.Error, `unknown message type "self_destruct"`)
}
