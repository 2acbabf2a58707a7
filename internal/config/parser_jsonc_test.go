package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two",
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.NotContains(t, normalized, ",]")
	require.NotContains(t, normalized, ",}")
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, "// and /* comment-like */")
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8) // line2, col2
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestJSONCStringListUnmarshal(t *testing.T) {
	var list jsoncStringList
	require.NoError(t, list.UnmarshalJSON([]byte(`["a"," b ",""]`)))
	require.Equal(t, []string{"a", "b"}, []string(list))

	require.NoError(t, list.UnmarshalJSON([]byte(`"a, b, , c"`)))
	require.Equal(t, []string{"a", "b", "c"}, []string(list))

	err := list.UnmarshalJSON([]byte(`123`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected string array")
}

func TestParseJSONCAppliesEverySection(t *testing.T) {
	cfg, err := parseJSONC(`{
  // wake tuning
  "wake": {
    "phrases": ["computer", "hey computer"],
    "threshold": 0.7,
    "debounce_ms": 800,
    "response_delay_ms": 0,
    "command_max_seconds": 2.5,
  },
  "audio": {"input": " USB Mic ", "fallback": "default", "sample_rate": 48000},
  "commands": {"path": "/etc/jarvis/commands.json"},
  "sounds": {"enable": false, "dir": "~/sounds", "greeting": "hello.wav", "acks": "a.wav, b.wav"},
  "model": {"dir": "models/small", "url": "https://example.com/small.zip", "auto_download": false, "download_timeout_ms": 90000},
  "recognizer": {"prefer": " Utterance ", "language": "en-GB", "partial_interval_ms": 250, "listen_window_ms": 3000},
  "remote": {"grpc": "10.0.0.2:50051", "dial_timeout_ms": 1000, "call_timeout_ms": 5000},
  "channel": {"addr": "127.0.0.1:9999"},
  "debug": {"audio_dump": true},
}`, Default())
	require.NoError(t, err)

	require.Equal(t, []string{"computer", "hey computer"}, cfg.Wake.Phrases)
	require.Equal(t, 0.7, cfg.Wake.Threshold)
	require.Equal(t, 800*time.Millisecond, cfg.Wake.Debounce)
	require.Equal(t, time.Duration(0), cfg.Wake.ResponseDelay)
	require.Equal(t, 2500*time.Millisecond, cfg.Wake.CommandMax)
	require.Equal(t, "USB Mic", cfg.Audio.Input)
	require.Equal(t, 48000, cfg.Audio.SampleRate)
	require.Equal(t, "/etc/jarvis/commands.json", cfg.Commands.Path)
	require.False(t, cfg.Sounds.Enable)
	require.Equal(t, "~/sounds", cfg.Sounds.Dir)
	require.Equal(t, "hello.wav", cfg.Sounds.Greeting)
	require.Equal(t, []string{"a.wav", "b.wav"}, cfg.Sounds.Acks)
	require.Equal(t, "models/small", cfg.Model.Dir)
	require.False(t, cfg.Model.AutoDownload)
	require.Equal(t, 90*time.Second, cfg.Model.DownloadTimeout)
	require.Equal(t, "utterance", cfg.Recognizer.Prefer)
	require.Equal(t, "en-GB", cfg.Recognizer.Language)
	require.Equal(t, 250*time.Millisecond, cfg.Recognizer.PartialInterval)
	require.Equal(t, 3*time.Second, cfg.Recognizer.ListenWindow)
	require.Equal(t, "10.0.0.2:50051", cfg.Remote.GRPC)
	require.Equal(t, time.Second, cfg.Remote.DialTimeout)
	require.Equal(t, 5*time.Second, cfg.Remote.CallTimeout)
	require.Equal(t, "127.0.0.1:9999", cfg.Channel.Addr)
	require.True(t, cfg.Debug.EnableAudioDump)
}

func TestParseJSONCLeavesBaseUntouched(t *testing.T) {
	base := Default()
	cfg, err := parseJSONC(`{"wake": {"threshold": 0.9}}`, base)
	require.NoError(t, err)
	require.Equal(t, 0.9, cfg.Wake.Threshold)
	require.Equal(t, base.Wake.Phrases, cfg.Wake.Phrases)

	cfg.Wake.Phrases[0] = "mutated"
	require.Equal(t, "jarvis", base.Wake.Phrases[0])
}

func TestParseJSONCRejectsUnknownFields(t *testing.T) {
	_, err := parseJSONC(`{"wake": {"sensitivity": 1}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseJSONCRejectsMultipleTopLevelValues(t *testing.T) {
	_, err := parseJSONC(`{"sounds":{"enable":false}}{"sounds":{"enable":true}}`, Default())
	require.Error(t, err)
	require.True(
		t,
		strings.Contains(err.Error(), "multiple JSON values") || strings.Contains(err.Error(), "unknown field"),
		"unexpected error: %v",
		err,
	)
}

func TestParseJSONCTypeErrorIncludesLocation(t *testing.T) {
	_, err := parseJSONC(`{
  "remote": {"grpc": 123}
}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line")
	require.Contains(t, err.Error(), "column")
}

func TestParseValidatesAndAcceptsEmptyContent(t *testing.T) {
	cfg, warnings, err := Parse("  \n", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)

	_, _, err = Parse(`{"wake": {"threshold": 1.5}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "wake.threshold")
}
