// Package yamlfile stores the permission configuration as a YAML document
// on disk, the way the host platform's config directory expects it.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/repositories"
)

// ConfigRepository reads and writes the permission document at a fixed
// path. Writes are atomic: a temp file in the same directory is renamed
// over the target so a crash never leaves a half-written document.
type ConfigRepository struct {
	path string
}

// NewConfigRepository creates a repository for the given document path.
func NewConfigRepository(path string) *ConfigRepository {
	return &ConfigRepository{path: path}
}

// Load reads and normalizes the configuration document. A missing file is
// bootstrapped with the default document first.
func (r *ConfigRepository) Load(ctx context.Context) (*entities.Config, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		if err := r.Save(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to bootstrap default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", r.path, err)
	}

	var doc configDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", r.path, err)
	}

	return doc.normalize(), nil
}

// Save writes the canonical document shape atomically.
func (r *ConfigRepository) Save(_ context.Context, cfg *entities.Config) error {
	data, err := yaml.Marshal(newConfigDoc(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".access_control-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// DefaultConfig is the document written on first start: the stock roles
// plus floor restrictions on the platform's dangerous services.
func DefaultConfig() *entities.Config {
	return &entities.Config{
		Version:       "2.0",
		DefaultAccess: "allow",
		DefaultRole:   entities.AssignmentNone,
		DefaultRestrictions: &entities.DefaultRestrictions{
			Domains: map[string]*entities.Rule{
				"homeassistant": {Allow: false, Services: []string{"restart", "stop", "reload_config_entry", "check_config"}},
				"system_log":    {Allow: false, Services: []string{"write", "clear"}},
				"hassio":        {Allow: false, Services: []string{"host_reboot", "host_shutdown", "supervisor_update", "supervisor_restart"}},
			},
			Entities: map[string]*entities.Rule{},
		},
		Roles: map[string]*entities.Role{
			"admin": {Name: "admin", Description: "Administrator with full access", Admin: true},
			"user":  {Name: "user", Description: "Standard user with limited permissions"},
			"guest": {Name: "guest", Description: "Guest with minimal permissions", DenyAll: true},
		},
		Users:    map[string]*entities.UserAssignment{},
		Settings: entities.DefaultSettings(),
	}
}

var _ repositories.ConfigRepository = (*ConfigRepository)(nil)
