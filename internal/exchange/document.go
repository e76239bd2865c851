// Package exchange converts the custom dictionary to and from its portable
// interchange document and plans imports against the active dictionary.
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rbright/parla/internal/dictionary"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the interchange version written by Export.
const CurrentVersion = 1

// ErrUnsupportedVersion reports a document written by an unknown format revision.
var ErrUnsupportedVersion = errors.New("unsupported dictionary document version")

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Document is the interchange shape shared by export and import.
type Document struct {
	Version      int           `json:"version" yaml:"version"`
	Replacements []Replacement `json:"replacements" yaml:"replacements"`
	Vocabulary   []Word        `json:"vocabulary" yaml:"vocabulary"`
}

// Replacement is one exported rule. Priority is carried by array position.
type Replacement struct {
	Originals   []string `json:"originals" yaml:"originals"`
	Replacement string   `json:"replacement" yaml:"replacement"`
}

// Word is one exported vocabulary entry.
type Word struct {
	Word string `json:"word" yaml:"word"`
}

// FormatForPath infers the encoding from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown document format %q (expected json or yaml)", name)
	}
}

// Export serializes the full snapshot. Rules are emitted in priority order.
func Export(snapshot dictionary.Snapshot) Document {
	rules := append([]dictionary.ReplacementRule(nil), snapshot.Rules...)
	dictionary.SortRules(rules)

	doc := Document{
		Version:      CurrentVersion,
		Replacements: make([]Replacement, 0, len(rules)),
		Vocabulary:   make([]Word, 0, len(snapshot.Vocabulary)),
	}
	for _, rule := range rules {
		doc.Replacements = append(doc.Replacements, Replacement{
			Originals:   append([]string(nil), rule.Originals...),
			Replacement: rule.Replacement,
		})
	}
	for _, entry := range snapshot.Vocabulary {
		doc.Vocabulary = append(doc.Vocabulary, Word{Word: entry.Word})
	}
	return doc
}

// Encode writes doc in the requested format.
func Encode(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown document format %q", format)
	}
}

// Decode reads and validates a document.
func Decode(r io.Reader, format Format) (Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}

	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return Document{}, errors.New("decode yaml: document is empty")
			}
			return Document{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(content))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json: %w", wrapJSONDecodeError(content, err))
		}
		if dec.More() {
			return Document{}, errors.New("decode json: multiple JSON values are not allowed")
		}
	default:
		return Document{}, fmt.Errorf("unknown document format %q", format)
	}

	if err := Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate enforces the document invariants checked on import.
func Validate(doc Document) error {
	if doc.Version <= 0 {
		return fmt.Errorf("%w: version is missing", ErrUnsupportedVersion)
	}
	if doc.Version > CurrentVersion {
		return fmt.Errorf("%w: %d (newest known is %d)", ErrUnsupportedVersion, doc.Version, CurrentVersion)
	}
	for i, replacement := range doc.Replacements {
		if len(dictionary.NormalizeOriginals(replacement.Originals)) == 0 {
			return fmt.Errorf("replacements[%d]: %w", i, dictionary.ErrNoOriginals)
		}
	}
	for i, word := range doc.Vocabulary {
		if _, err := dictionary.NewVocabularyEntry(word.Word); err != nil {
			return fmt.Errorf("vocabulary[%d]: %w", i, err)
		}
	}
	return nil
}

func wrapJSONDecodeError(content []byte, err error) error {
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

func offsetToLineCol(content []byte, offset int64) (int, int) {
	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

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
