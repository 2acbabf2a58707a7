// Package channel is the local websocket notification channel. External UIs
// subscribe to transcript, dispatch and status events and may request an
// on-demand listen.
package channel

// DefaultAddr is the loopback address the daemon listens on.
const DefaultAddr = "127.0.0.1:8765"

// Message types.
const (
	TypeTranscript     = "transcript"
	TypeDispatch       = "dispatch"
	TypeStatus         = "status"
	TypeError          = "error"
	TypeStartListen    = "start_listen"
	TypeStopListen     = "stop_listen"
	TypeReloadCommands = "reload_commands"
)

// Message is one JSON frame in either direction. Text and OK are pointers so
// an empty transcript and a failed dispatch still serialize their fields.
type Message struct {
	Type    string   `json:"type"`
	Text    *string  `json:"text,omitempty"`
	State   string   `json:"state,omitempty"`
	ID      string   `json:"id,omitempty"`
	Trigger string   `json:"trigger,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Args    []string `json:"args,omitempty"`
	OK      *bool    `json:"ok,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Transcript reports the text of a completed capture.
func Transcript(text string) Message {
	return Message{Type: TypeTranscript, Text: &text}
}

// Status reports an engine state.
func Status(state string) Message {
	return Message{Type: TypeStatus, State: state}
}

// Dispatch reports one executed command.
func Dispatch(id, trigger, kind string, args []string, ok bool, message string) Message {
	return Message{
		Type:    TypeDispatch,
		ID:      id,
		Trigger: trigger,
		Kind:    kind,
		Args:    args,
		OK:      &ok,
		Message: message,
	}
}

// ErrorMessage reports a rejected inbound frame.
func ErrorMessage(text string) Message {
	return Message{Type: TypeError, Error: text}
}

// TextValue returns Text or "".
func (m Message) TextValue() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

// Succeeded reports whether OK is set and true.
func (m Message) Succeeded() bool {
	return m.OK != nil && *m.OK
}
