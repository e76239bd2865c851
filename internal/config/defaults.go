package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Dictionary: DictionaryConfig{Enable: true},
		Transcript: TranscriptConfig{
			TrailingSpace:       true,
			CapitalizeSentences: true,
		},
		Enhancement: EnhancementConfig{
			Enable:      false,
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutMS:   8000,
			Temperature: 0.2,
		},
		Clipboard: mustParseCommand("wl-copy --trim-newline"),
		Paste:     PasteConfig{Enable: false},
		History:   HistoryConfig{Enable: true, Limit: 200},
		ASR: ASRConfig{
			GRPC:      "127.0.0.1:50051",
			TimeoutMS: 1500,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Indicator: IndicatorConfig{
			DesktopAppName: "parla",
			ErrorTimeoutMS: 4000,
		},
		LogLevel: "info",
	}
}
