package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	LogLevel     *string           `json:"log_level"`
	Dictionary   *jsoncDictionary  `json:"dictionary"`
	Transcript   *jsoncTranscript  `json:"transcript"`
	Enhancement  *jsoncEnhancement `json:"enhancement"`
	ClipboardCmd *string           `json:"clipboard_cmd"`
	Paste        *jsoncPaste       `json:"paste"`
	History      *jsoncHistory     `json:"history"`
	ASR          *jsoncASR         `json:"asr"`
	Audio        *jsoncAudio       `json:"audio"`
	Indicator    *jsoncIndicator   `json:"indicator"`
}

type jsoncDictionary struct {
	Enable *bool   `json:"enable"`
	DBPath *string `json:"db_path"`
}

type jsoncTranscript struct {
	TrailingSpace       *bool `json:"trailing_space"`
	CapitalizeSentences *bool `json:"capitalize_sentences"`
}

type jsoncEnhancement struct {
	Enable      *bool    `json:"enable"`
	BaseURL     *string  `json:"base_url"`
	Model       *string  `json:"model"`
	APIKeyEnv   *string  `json:"api_key_env"`
	TimeoutMS   *int     `json:"timeout_ms"`
	Temperature *float64 `json:"temperature"`
	Prompt      *string  `json:"prompt"`
}

type jsoncPaste struct {
	Enable *bool   `json:"enable"`
	Cmd    *string `json:"cmd"`
}

type jsoncHistory struct {
	Enable *bool `json:"enable"`
	Limit  *int  `json:"limit"`
}

type jsoncASR struct {
	GRPC          *string `json:"grpc"`
	HealthService *string `json:"health_service"`
	TimeoutMS     *int    `json:"timeout_ms"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable"`
	DesktopAppName    *string `json:"desktop_app_name"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundErrorFile    *string `json:"sound_error_file"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	setString(&cfg.LogLevel, payload.LogLevel)

	if d := payload.Dictionary; d != nil {
		setBool(&cfg.Dictionary.Enable, d.Enable)
		setString(&cfg.Dictionary.DBPath, d.DBPath)
	}

	if t := payload.Transcript; t != nil {
		setBool(&cfg.Transcript.TrailingSpace, t.TrailingSpace)
		setBool(&cfg.Transcript.CapitalizeSentences, t.CapitalizeSentences)
	}

	if e := payload.Enhancement; e != nil {
		setBool(&cfg.Enhancement.Enable, e.Enable)
		setString(&cfg.Enhancement.BaseURL, e.BaseURL)
		setString(&cfg.Enhancement.Model, e.Model)
		setString(&cfg.Enhancement.APIKeyEnv, e.APIKeyEnv)
		if e.TimeoutMS != nil {
			cfg.Enhancement.TimeoutMS = *e.TimeoutMS
		}
		if e.Temperature != nil {
			cfg.Enhancement.Temperature = *e.Temperature
		}
		if e.Prompt != nil {
			cfg.Enhancement.Prompt = *e.Prompt
		}
	}

	if payload.ClipboardCmd != nil {
		cmd, err := ParseCommand(*payload.ClipboardCmd)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = cmd
	}

	if p := payload.Paste; p != nil {
		setBool(&cfg.Paste.Enable, p.Enable)
		if p.Cmd != nil {
			cmd, err := ParseCommand(*p.Cmd)
			if err != nil {
				return fmt.Errorf("invalid paste.cmd: %w", err)
			}
			cfg.Paste.Cmd = cmd
		}
	}

	if h := payload.History; h != nil {
		setBool(&cfg.History.Enable, h.Enable)
		if h.Limit != nil {
			cfg.History.Limit = *h.Limit
		}
	}

	if a := payload.ASR; a != nil {
		setString(&cfg.ASR.GRPC, a.GRPC)
		setString(&cfg.ASR.HealthService, a.HealthService)
		if a.TimeoutMS != nil {
			cfg.ASR.TimeoutMS = *a.TimeoutMS
		}
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		if i.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *i.ErrorTimeoutMS
		}
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setString(&cfg.Indicator.SoundCompleteFile, i.SoundCompleteFile)
		setString(&cfg.Indicator.SoundErrorFile, i.SoundErrorFile)
	}

	return nil
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func setBool(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}

// normalizeJSONC blanks out comments and drops trailing commas. Comment bytes
// become spaces so decoder offsets still map to the original line/column.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

// jsonString tracks whether a scanner is inside a JSON string literal.
type jsonString struct {
	inside bool
	escape bool
}

// step consumes ch and reports whether it belongs to a string literal.
func (s *jsonString) step(ch byte) bool {
	switch {
	case s.escape:
		s.escape = false
		return true
	case s.inside && ch == '\\':
		s.escape = true
		return true
	case ch == '"':
		s.inside = !s.inside
		return true
	default:
		return s.inside
	}
}

func stripJSONCComments(content string) (string, error) {
	var (
		out   strings.Builder
		str   jsonString
		line  bool
		block bool
	)
	out.Grow(len(content))

	for i := 0; i < len(content); i++ {
		ch := content[i]

		switch {
		case line:
			if ch == '\n' || ch == '\r' {
				line = false
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
		case block:
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				block = false
				out.WriteString("  ")
				i++
			} else if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
		case str.step(ch):
			out.WriteByte(ch)
		case ch == '/' && i+1 < len(content) && (content[i+1] == '/' || content[i+1] == '*'):
			line = content[i+1] == '/'
			block = !line
			out.WriteString("  ")
			i++
		default:
			out.WriteByte(ch)
		}
	}

	if block {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var (
		out strings.Builder
		str jsonString
	)
	out.Grow(len(content))

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if !str.step(ch) && ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				out.WriteByte(' ')
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
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

	limit := min(int(offset), len(content))
	line, col := 1, 1
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
