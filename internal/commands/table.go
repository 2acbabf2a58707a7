// Package commands owns the persisted trigger -> action table.
package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed marks a command table file that cannot be decoded.
var ErrMalformed = errors.New("malformed command table")

// Kind is the resolved action family for one entry.
type Kind string

const (
	KindOpenBrowser Kind = "open_browser"
	KindOpenURL     Kind = "open_url"
	KindOpenPath    Kind = "open_path"
	KindShell       Kind = "shell"
	KindUnknown     Kind = "unknown"
)

const (
	TypeBuiltin = "builtin"
	TypeShell   = "shell"
)

// Entry is one trigger phrase and its action descriptor.
type Entry struct {
	Trigger string
	Type    string
	Action  string
	Args    []string
}

// Kind maps the persisted type/action pair onto an action family.
func (e Entry) Kind() Kind {
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "", TypeShell:
		return KindShell
	case TypeBuiltin:
		switch Kind(strings.ToLower(strings.TrimSpace(e.Action))) {
		case KindOpenBrowser:
			return KindOpenBrowser
		case KindOpenURL:
			return KindOpenURL
		case KindOpenPath:
			return KindOpenPath
		}
	}
	return KindUnknown
}

// Table is an immutable, ordered command mapping.
type Table struct {
	entries []Entry
	index   map[string]int
}

// NewTable builds a table in the given order. A repeated trigger keeps its
// first position and takes the later descriptor.
func NewTable(entries ...Entry) *Table {
	t := &Table{index: make(map[string]int, len(entries))}
	for _, entry := range entries {
		entry.Args = append([]string(nil), entry.Args...)
		if i, ok := t.index[entry.Trigger]; ok {
			t.entries[i] = entry
			continue
		}
		t.index[entry.Trigger] = len(t.entries)
		t.entries = append(t.entries, entry)
	}
	return t
}

// Entries returns a copy of the entries in match order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of triggers.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup finds an entry by exact trigger.
func (t *Table) Lookup(trigger string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	i, ok := t.index[trigger]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Default returns the example table seeded on first run.
func Default() *Table {
	return NewTable(
		Entry{Trigger: "open browser", Type: TypeBuiltin, Action: string(KindOpenBrowser)},
		Entry{Trigger: "open google", Type: TypeBuiltin, Action: string(KindOpenURL), Args: []string{"https://www.google.com"}},
		Entry{Trigger: "open youtube", Type: TypeBuiltin, Action: string(KindOpenURL), Args: []string{"https://www.youtube.com"}},
		Entry{Trigger: "launch steam", Type: TypeShell, Action: "start steam"},
		Entry{Trigger: "open discord", Type: TypeShell, Action: "start discord"},
	)
}

type fileEntry struct {
	Type   string   `json:"type"`
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
}

// Parse decodes a JSON object of trigger -> descriptor, keeping file order.
func Parse(data []byte) (*Table, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))

	open, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	entries := make([]Entry, 0)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		trigger, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected key %v", ErrMalformed, keyToken)
		}

		var raw fileEntry
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: trigger %q: %v", ErrMalformed, trigger, err)
		}
		if strings.TrimSpace(trigger) == "" {
			return nil, fmt.Errorf("%w: empty trigger", ErrMalformed)
		}
		entries = append(entries, Entry{
			Trigger: trigger,
			Type:    raw.Type,
			Action:  raw.Action,
			Args:    raw.Args,
		})
	}

	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after table", ErrMalformed)
	}

	return NewTable(entries...), nil
}

// Encode renders the table as indented JSON in match order.
func Encode(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, entry := range t.Entries() {
		key, err := json.Marshal(entry.Trigger)
		if err != nil {
			return nil, fmt.Errorf("encode trigger %q: %w", entry.Trigger, err)
		}
		value, err := json.MarshalIndent(fileEntry{
			Type:   entry.Type,
			Action: entry.Action,
			Args:   entry.Args,
		}, "    ", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode trigger %q: %w", entry.Trigger, err)
		}
		buf.WriteString("    ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(value)
		if i < t.Len()-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
