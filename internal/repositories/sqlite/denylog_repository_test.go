package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/callguard/callguard/internal/entities"
)

func newTestRepo(t *testing.T) *DenyLogRepository {
	t.Helper()
	repo, err := NewDenyLogRepository(filepath.Join(t.TempDir(), "deny.db"))
	if err != nil {
		t.Fatalf("NewDenyLogRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestDenyLogRepository_AppendAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	denials := []*entities.Denial{
		{UserID: "alice", Domain: "light", EntityID: "light.bedroom", Service: "turn_off", Reason: entities.ReasonEntityRule, Role: "guest"},
		{UserID: "bob", Domain: "homeassistant", Service: "restart", Reason: entities.ReasonDefaultRestriction},
	}
	for _, d := range denials {
		if err := repo.Append(ctx, d); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(got))
	}

	// Newest first.
	if got[0].UserID != "bob" || got[1].UserID != "alice" {
		t.Errorf("Recent() order = [%s, %s], want [bob, alice]", got[0].UserID, got[1].UserID)
	}
	if got[1].Reason != entities.ReasonEntityRule || got[1].Role != "guest" {
		t.Errorf("Recent() entry = %+v, want entity_rule/guest", got[1])
	}
	if got[0].Time.IsZero() {
		t.Error("Append() should stamp the denial time")
	}
}

func TestDenyLogRepository_RecentLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Append(ctx, &entities.Denial{
			UserID: "alice", Domain: "light", Service: "turn_on",
			Reason: entities.ReasonRoleDenyAllDefault,
		}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Recent(3) returned %d entries, want 3", len(got))
	}
}

func TestDenyLogRepository_Clear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Append(ctx, &entities.Denial{
		UserID: "alice", Domain: "light", Service: "turn_on",
		Reason: entities.ReasonRoleDenyAllDefault,
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	got, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Recent() after Clear() returned %d entries, want 0", len(got))
	}
}
