package activation

import (
	"context"
	"fmt"

	"github.com/rbright/jarvis/internal/channel"
)

// BusyState is reported to a start_listen requester while a cycle runs.
const BusyState = "busy"

// Handle answers inbound channel messages.
func (e *Engine) Handle(_ context.Context, msg channel.Message) *channel.Message {
	switch msg.Type {
	case channel.TypeStartListen:
		if !e.Listen() {
			reply := channel.Status(BusyState)
			reply.Message = fmt.Sprintf("capture already running (%s)", e.State())
			return &reply
		}
		return nil
	case channel.TypeStopListen:
		e.logger.Debug("stop_listen received; in-flight captures run to completion")
		return nil
	case channel.TypeReloadCommands:
		n, err := e.ReloadCommands()
		if err != nil {
			reply := channel.ErrorMessage(fmt.Sprintf("reload failed; keeping %d triggers: %v", n, err))
			return &reply
		}
		reply := channel.Status(string(e.State()))
		reply.Message = fmt.Sprintf("reloaded %d triggers", n)
		return &reply
	case channel.TypeStatus:
		reply := channel.Status(string(e.State()))
		return &reply
	default:
		reply := channel.ErrorMessage(fmt.Sprintf("unknown message type %q", msg.Type))
		return &reply
	}
}
