package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ParseCommand splits a shell-like command line into argv. Single and double
// quotes group words and a backslash escapes the next rune; no expansion is
// performed. A blank line or one starting with "#" yields an empty command.
func ParseCommand(raw string) (CommandConfig, error) {
	line := strings.TrimSpace(raw)
	if line == "" || line[0] == '#' {
		return CommandConfig{Raw: raw}, nil
	}

	var s argvSplitter
	for _, r := range line {
		s.feed(r)
	}
	if err := s.finish(); err != nil {
		return CommandConfig{}, fmt.Errorf("%w in command %q", err, line)
	}
	return CommandConfig{Raw: raw, Argv: s.argv}, nil
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

type argvSplitter struct {
	argv    []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func (s *argvSplitter) feed(r rune) {
	if s.escaped {
		s.escaped = false
		s.add(r)
		return
	}
	if r == '\\' {
		s.escaped = true
		s.inWord = true
		return
	}

	if s.quote != 0 {
		if r == s.quote {
			s.quote = 0
		} else {
			s.add(r)
		}
		return
	}

	switch {
	case r == '"' || r == '\'':
		s.quote = r
		s.inWord = true
	case unicode.IsSpace(r):
		s.endWord()
	default:
		s.add(r)
	}
}

func (s *argvSplitter) add(r rune) {
	s.word.WriteRune(r)
	s.inWord = true
}

// endWord emits the pending word. Quoted empty strings ("") count as words.
func (s *argvSplitter) endWord() {
	if !s.inWord {
		return
	}
	s.argv = append(s.argv, s.word.String())
	s.word.Reset()
	s.inWord = false
}

func (s *argvSplitter) finish() error {
	switch {
	case s.escaped:
		return errors.New("unterminated escape sequence")
	case s.quote != 0:
		return errors.New("unterminated quote")
	}
	s.endWord()
	return nil
}
