// Package config resolves, parses, validates, and defaults parla configuration.
package config

// BuiltinClipboard selects the in-process clipboard backend instead of a command.
const BuiltinClipboard = "builtin"

// Config is the fully materialized runtime configuration.
type Config struct {
	Dictionary  DictionaryConfig
	Transcript  TranscriptConfig
	Enhancement EnhancementConfig
	Clipboard   CommandConfig
	Paste       PasteConfig
	History     HistoryConfig
	ASR         ASRConfig
	Audio       AudioConfig
	Indicator   IndicatorConfig
	LogLevel    string
}

// DictionaryConfig controls the custom dictionary stage and its storage.
type DictionaryConfig struct {
	Enable bool
	// DBPath is the SQLite file; empty selects DefaultDatabasePath.
	DBPath string
}

// TranscriptConfig controls normalization around the dictionary pass.
type TranscriptConfig struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// EnhancementConfig describes the optional AI cleanup endpoint.
type EnhancementConfig struct {
	Enable      bool
	BaseURL     string
	Model       string
	APIKeyEnv   string
	TimeoutMS   int
	Temperature float64
	Prompt      string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// IsBuiltin reports whether the command selects the builtin clipboard.
func (c CommandConfig) IsBuiltin() bool {
	return len(c.Argv) == 1 && c.Argv[0] == BuiltinClipboard
}

// PasteConfig controls the post-commit paste command.
type PasteConfig struct {
	Enable bool
	Cmd    CommandConfig
}

// HistoryConfig controls transcript history retention.
type HistoryConfig struct {
	Enable bool
	Limit  int
}

// ASRConfig points readiness probes at the transcription collaborator.
type ASRConfig struct {
	GRPC          string
	HealthService string
	TimeoutMS     int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// IndicatorConfig controls desktop notifications and audio cues around commit.
type IndicatorConfig struct {
	// Enable sends a desktop notification when enhancement or commit fails.
	Enable         bool
	DesktopAppName string
	ErrorTimeoutMS int

	SoundEnable       bool
	SoundCompleteFile string
	SoundErrorFile    string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
