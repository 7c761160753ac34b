package repositories

import (
	"context"

	"github.com/callguard/callguard/internal/entities"
)

// ConfigRepository persists the permission configuration document.
// Implementations normalize legacy document shapes into the canonical
// entities.Config at load time and write the canonical shape back.
type ConfigRepository interface {
	// Load reads the configuration, bootstrapping a default document when
	// none exists yet.
	Load(ctx context.Context) (*entities.Config, error)

	// Save persists the configuration durably before returning.
	Save(ctx context.Context, cfg *entities.Config) error
}
