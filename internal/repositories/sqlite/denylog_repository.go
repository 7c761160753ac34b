// Package sqlite persists the deny log in an embedded SQLite database so
// denials survive restarts without a network database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/repositories"
)

// DenyLogRepository stores denial records in a single SQLite table.
type DenyLogRepository struct {
	db *sql.DB
}

// NewDenyLogRepository opens (and if needed creates) the deny-log
// database at the given path. Use ":memory:" for an ephemeral store.
func NewDenyLogRepository(path string) (*DenyLogRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open deny log database: %w", err)
	}

	repo := &DenyLogRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *DenyLogRepository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS deny_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			denied_at  TIMESTAMP NOT NULL,
			user_id    TEXT NOT NULL,
			domain     TEXT NOT NULL,
			entity_id  TEXT NOT NULL DEFAULT '',
			service    TEXT NOT NULL,
			reason     TEXT NOT NULL,
			role       TEXT NOT NULL DEFAULT '',
			chain_id   TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_deny_log_denied_at ON deny_log (denied_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate deny log schema: %w", err)
	}
	return nil
}

// Append stores one denial record.
func (r *DenyLogRepository) Append(ctx context.Context, denial *entities.Denial) error {
	deniedAt := denial.Time
	if deniedAt.IsZero() {
		deniedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deny_log (denied_at, user_id, domain, entity_id, service, reason, role, chain_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, deniedAt, denial.UserID, denial.Domain, denial.EntityID, denial.Service,
		string(denial.Reason), denial.Role, denial.ChainID)
	if err != nil {
		return fmt.Errorf("failed to append deny log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit denials, newest first.
func (r *DenyLogRepository) Recent(ctx context.Context, limit int) ([]*entities.Denial, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, denied_at, user_id, domain, entity_id, service, reason, role, chain_id
		FROM deny_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read deny log: %w", err)
	}
	defer rows.Close()

	var denials []*entities.Denial
	for rows.Next() {
		var d entities.Denial
		var reason string
		if err := rows.Scan(&d.ID, &d.Time, &d.UserID, &d.Domain, &d.EntityID,
			&d.Service, &reason, &d.Role, &d.ChainID); err != nil {
			return nil, fmt.Errorf("failed to scan deny log entry: %w", err)
		}
		d.Reason = entities.Reason(reason)
		denials = append(denials, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deny log: %w", err)
	}
	return denials, nil
}

// Clear removes all denial records.
func (r *DenyLogRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deny_log`); err != nil {
		return fmt.Errorf("failed to clear deny log: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *DenyLogRepository) Close() error {
	return r.db.Close()
}

var _ repositories.DenyLogRepository = (*DenyLogRepository)(nil)
