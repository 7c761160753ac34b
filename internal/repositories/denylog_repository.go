package repositories

import (
	"context"

	"github.com/callguard/callguard/internal/entities"
)

// DenyLogRepository persists denied-call records for the admin surface.
type DenyLogRepository interface {
	// Append stores one denial record.
	Append(ctx context.Context, denial *entities.Denial) error

	// Recent returns up to limit denials, newest first.
	Recent(ctx context.Context, limit int) ([]*entities.Denial, error)

	// Clear removes all denial records.
	Clear(ctx context.Context) error

	// Close releases the underlying store.
	Close() error
}
