// Package identity supplies the stable per-installation token that scopes
// every backend request to a user. The token doubles as the chat session
// id.
package identity

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Provider hands out one identity token per installation, generating and
// persisting it on first use. Construct once at startup and inject it into
// the components that need it.
type Provider struct {
	mu    sync.Mutex
	path  string
	token string
}

// NewProvider creates a provider that persists the token at path. An empty
// path selects the default location under the user config directory.
func NewProvider(path string) *Provider {
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", "bookchat", "identity")
		}
	}
	return &Provider{path: path}
}

// GetOrCreate returns the stored token, generating and persisting a new one
// if none exists. It cannot fail: if persistence is unavailable the token
// is held in memory for the lifetime of the process.
func (p *Provider) GetOrCreate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token
	}
	if p.path != "" {
		if data, err := os.ReadFile(p.path); err == nil {
			if tok := strings.TrimSpace(string(data)); tok != "" {
				p.token = tok
				return p.token
			}
		}
	}
	p.token = uuid.NewString()
	if p.path != "" {
		if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err == nil {
			_ = os.WriteFile(p.path, []byte(p.token+"\n"), 0o600)
		}
	}
	return p.token
}
