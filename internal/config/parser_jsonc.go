package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

type jsoncConfig struct {
	Wake       *jsoncWake       `json:"wake"`
	Audio      *jsoncAudio      `json:"audio"`
	Commands   *jsoncCommands   `json:"commands"`
	Sounds     *jsoncSounds     `json:"sounds"`
	Model      *jsoncModel      `json:"model"`
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Remote     *jsoncRemote     `json:"remote"`
	Channel    *jsoncChannel    `json:"channel"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncWake struct {
	Phrases           *jsoncStringList `json:"phrases"`
	Threshold         *float64         `json:"threshold"`
	DebounceMS        *int             `json:"debounce_ms"`
	ResponseDelayMS   *int             `json:"response_delay_ms"`
	CommandMaxSeconds *float64         `json:"command_max_seconds"`
}

type jsoncAudio struct {
	Input      *string `json:"input"`
	Fallback   *string `json:"fallback"`
	SampleRate *int    `json:"sample_rate"`
}

type jsoncCommands struct {
	Path *string `json:"path"`
}

type jsoncSounds struct {
	Enable   *bool            `json:"enable"`
	Dir      *string          `json:"dir"`
	Greeting *string          `json:"greeting"`
	Acks     *jsoncStringList `json:"acks"`
}

type jsoncModel struct {
	Dir          *string `json:"dir"`
	URL          *string `json:"url"`
	AutoDownload *bool   `json:"auto_download"`

	DownloadTimeoutMS *int `json:"download_timeout_ms"`
}

type jsoncRecognizer struct {
	Prefer            *string `json:"prefer"`
	Language          *string `json:"language"`
	PartialIntervalMS *int    `json:"partial_interval_ms"`
	ListenWindowMS    *int    `json:"listen_window_ms"`
}

type jsoncRemote struct {
	GRPC          *string `json:"grpc"`
	DialTimeoutMS *int    `json:"dial_timeout_ms"`
	CallTimeoutMS *int    `json:"call_timeout_ms"`
}

type jsoncChannel struct {
	Addr *string `json:"addr"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = trimList(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = trimList(strings.Split(single, ","))
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func parseJSONC(content string, base Config) (Config, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	cfg.Wake.Phrases = append([]string(nil), base.Wake.Phrases...)
	cfg.Sounds.Acks = append([]string(nil), base.Sounds.Acks...)
	payload.applyTo(&cfg)
	return cfg, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if w := payload.Wake; w != nil {
		if w.Phrases != nil {
			cfg.Wake.Phrases = []string(*w.Phrases)
		}
		if w.Threshold != nil {
			cfg.Wake.Threshold = *w.Threshold
		}
		if w.DebounceMS != nil {
			cfg.Wake.Debounce = millis(*w.DebounceMS)
		}
		if w.ResponseDelayMS != nil {
			cfg.Wake.ResponseDelay = millis(*w.ResponseDelayMS)
		}
		if w.CommandMaxSeconds != nil {
			cfg.Wake.CommandMax = time.Duration(*w.CommandMaxSeconds * float64(time.Second))
		}
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = strings.TrimSpace(*a.Input)
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = strings.TrimSpace(*a.Fallback)
		}
		if a.SampleRate != nil {
			cfg.Audio.SampleRate = *a.SampleRate
		}
	}

	if payload.Commands != nil && payload.Commands.Path != nil {
		cfg.Commands.Path = strings.TrimSpace(*payload.Commands.Path)
	}

	if s := payload.Sounds; s != nil {
		if s.Enable != nil {
			cfg.Sounds.Enable = *s.Enable
		}
		if s.Dir != nil {
			cfg.Sounds.Dir = strings.TrimSpace(*s.Dir)
		}
		if s.Greeting != nil {
			cfg.Sounds.Greeting = strings.TrimSpace(*s.Greeting)
		}
		if s.Acks != nil {
			cfg.Sounds.Acks = []string(*s.Acks)
		}
	}

	if m := payload.Model; m != nil {
		if m.Dir != nil {
			cfg.Model.Dir = strings.TrimSpace(*m.Dir)
		}
		if m.URL != nil {
			cfg.Model.URL = strings.TrimSpace(*m.URL)
		}
		if m.AutoDownload != nil {
			cfg.Model.AutoDownload = *m.AutoDownload
		}
		if m.DownloadTimeoutMS != nil {
			cfg.Model.DownloadTimeout = millis(*m.DownloadTimeoutMS)
		}
	}

	if r := payload.Recognizer; r != nil {
		if r.Prefer != nil {
			cfg.Recognizer.Prefer = strings.ToLower(strings.TrimSpace(*r.Prefer))
		}
		if r.Language != nil {
			cfg.Recognizer.Language = strings.TrimSpace(*r.Language)
		}
		if r.PartialIntervalMS != nil {
			cfg.Recognizer.PartialInterval = millis(*r.PartialIntervalMS)
		}
		if r.ListenWindowMS != nil {
			cfg.Recognizer.ListenWindow = millis(*r.ListenWindowMS)
		}
	}

	if r := payload.Remote; r != nil {
		if r.GRPC != nil {
			cfg.Remote.GRPC = strings.TrimSpace(*r.GRPC)
		}
		if r.DialTimeoutMS != nil {
			cfg.Remote.DialTimeout = millis(*r.DialTimeoutMS)
		}
		if r.CallTimeoutMS != nil {
			cfg.Remote.CallTimeout = millis(*r.CallTimeoutMS)
		}
	}

	if payload.Channel != nil && payload.Channel.Addr != nil {
		cfg.Channel.Addr = strings.TrimSpace(*payload.Channel.Addr)
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
