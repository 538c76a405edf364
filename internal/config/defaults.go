package config

import "github.com/jackzampolin/stencil/internal/providers"

// DefaultConfig returns the configuration used when no config file is
// present. API keys are ${ENV_VAR} references resolved at registry build.
func DefaultConfig() Config {
	return Config{
		DefaultProvider: "openrouter",
		LLMProviders: map[string]providers.LLMProviderConfig{
			"openrouter": {
				Type:    "openrouter",
				Model:   "google/gemini-2.5-flash",
				APIKey:  "${OPENROUTER_API_KEY}",
				Timeout: 120,
				Enabled: true,
			},
			"openai": {
				Type:    "openai",
				Model:   "gpt-4o-mini",
				APIKey:  "${OPENAI_API_KEY}",
				Timeout: 120,
				Enabled: true,
			},
		},
		Matcher: MatcherConfig{
			AnchorWindow: 160,
		},
		Batch: BatchConfig{
			Workers:           4,
			DocTimeoutSeconds: 30,
		},
	}
}
