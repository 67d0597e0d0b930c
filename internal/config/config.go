package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wagw/config.toml.
type Config struct {
	DefaultSession string    `toml:"default_session"`
	Web            Web       `toml:"web"`
	Responder      Responder `toml:"responder"`
}

// Web configures the HTTP/WebSocket surface.
type Web struct {
	// Listen is the host:port to serve on. Empty disables the web surface.
	Listen string `toml:"listen"`
}

// Responder configures the auto-response pipeline.
type Responder struct {
	// Enabled gates the whole AI routing step; when false inbound messages
	// are still recorded and broadcast, but never answered.
	Enabled bool `toml:"enabled"`
	// Active names the backend consulted first.
	Active string `toml:"active"`
	// Fallback is tried once when Active does not match a known backend.
	Fallback string `toml:"fallback"`
	// Instructions is the global default system prompt.
	Instructions string `toml:"instructions"`
	// StaticReply is sent when no backend produced a usable reply.
	// Product copy, not a built-in: empty string means nothing is sent.
	StaticReply        string `toml:"static_reply"`
	StaticReplyEnabled bool   `toml:"static_reply_enabled"`

	Backends map[string]Backend `toml:"backends"`
}

// Backend holds per-backend settings.
type Backend struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// Instructions overrides Responder.Instructions when non-empty.
	Instructions string `toml:"instructions"`
}

// ResolveInstructions returns the system prompt for the named backend:
// the backend-specific override if non-empty, else the global default.
func (r Responder) ResolveInstructions(backend string) string {
	if b, ok := r.Backends[backend]; ok && b.Instructions != "" {
		return b.Instructions
	}
	return r.Instructions
}

// ResolveModel returns the configured model for the named backend, or
// empty when the backend should fall back to its own default.
func (r Responder) ResolveModel(backend string) string {
	if b, ok := r.Backends[backend]; ok {
		return b.Model
	}
	return ""
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to a usable default
// when the file does not exist yet.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return &Config{
			Web: Web{Listen: "127.0.0.1:8080"},
		}
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
