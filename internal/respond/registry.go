package respond

import (
	"github.com/wagw/wagw/internal/config"
	"go.uber.org/zap"
)

// Registry holds the configured backends keyed by name.
type Registry struct {
	backends map[string]Responder
}

// NewRegistry builds backends from config. Keys name the backend type:
// "openai" and "anthropic" talk to their vendors, "ollama" speaks the
// OpenAI-compatible API against a local base URL. Unknown keys are logged
// and skipped rather than failing daemon startup.
func NewRegistry(cfg config.Responder, logger *zap.Logger) *Registry {
	r := &Registry{backends: make(map[string]Responder)}
	for name, bc := range cfg.Backends {
		switch name {
		case "openai":
			r.backends[name] = NewOpenAI(name, bc)
		case "anthropic":
			r.backends[name] = NewAnthropic(name, bc)
		case "ollama":
			r.backends[name] = NewOllama(name, bc)
		default:
			logger.Warn("unknown backend in config, skipping", zap.String("backend", name))
		}
	}
	return r
}

// Get returns the named backend.
func (r *Registry) Get(name string) (Responder, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Names returns the configured backend names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// Register adds a backend, replacing any existing one with the same name.
// Used by tests to install fakes.
func (r *Registry) Register(b Responder) {
	r.backends[b.Name()] = b
}
