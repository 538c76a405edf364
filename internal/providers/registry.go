package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LLMProviderConfig is the config-file shape for one provider entry.
type LLMProviderConfig struct {
	Type    string `mapstructure:"type"` // "openai" or "openrouter"
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout_seconds"`
	Enabled bool   `mapstructure:"enabled"`
}

// RegistryConfig maps provider names to their configuration.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// Registry holds LLM clients by name with thread-safe access, supporting
// config-driven instantiation and hot reload.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]LLMClient
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]LLMClient),
		logger:  slog.Default(),
	}
}

// SetLogger sets the registry logger.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces a client by name.
func (r *Registry) Register(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.logger.Info("registered LLM client", "name", name)
}

// Get returns a client by name.
func (r *Registry) Get(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// Names lists registered client names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// LoadFromConfig replaces the registry contents from configuration. Called
// at startup and again on config hot reload.
func (r *Registry) LoadFromConfig(cfg RegistryConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make(map[string]LLMClient, len(cfg.LLMProviders))
	for name, pc := range cfg.LLMProviders {
		if !pc.Enabled {
			continue
		}
		client, err := buildClient(pc)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		clients[name] = client
		r.logger.Info("configured LLM client", "name", name, "type", pc.Type, "model", pc.Model)
	}
	r.clients = clients
	return nil
}

func buildClient(pc LLMProviderConfig) (LLMClient, error) {
	timeout := time.Duration(pc.Timeout) * time.Second
	switch pc.Type {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  pc.APIKey,
			Model:   pc.Model,
			BaseURL: pc.BaseURL,
			Timeout: timeout,
		}), nil
	case "openrouter":
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:  pc.APIKey,
			Model:   pc.Model,
			BaseURL: pc.BaseURL,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}
