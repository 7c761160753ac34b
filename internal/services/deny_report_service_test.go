package services

import (
	"context"
	"errors"
	"testing"

	"github.com/callguard/callguard/internal/entities"
)

type memoryDenyLog struct {
	denials   []*entities.Denial
	appendErr error
}

func (m *memoryDenyLog) Append(ctx context.Context, denial *entities.Denial) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.denials = append(m.denials, denial)
	return nil
}

func (m *memoryDenyLog) Recent(ctx context.Context, limit int) ([]*entities.Denial, error) {
	if limit > len(m.denials) {
		limit = len(m.denials)
	}
	out := make([]*entities.Denial, 0, limit)
	for i := len(m.denials) - 1; i >= len(m.denials)-limit; i-- {
		out = append(out, m.denials[i])
	}
	return out, nil
}

func (m *memoryDenyLog) Clear(ctx context.Context) error {
	m.denials = nil
	return nil
}

func (m *memoryDenyLog) Close() error { return nil }

func sampleDenial() *entities.Denial {
	return &entities.Denial{
		UserID: "alice", Domain: "light", EntityID: "light.bedroom",
		Service: "turn_off", Reason: entities.ReasonEntityRule, Role: "guest",
	}
}

func TestDenyReportService_SideEffectsFollowSettings(t *testing.T) {
	tests := []struct {
		name                           string
		settings                       *entities.Settings
		wantLog, wantNotify, wantEvent bool
	}{
		{
			name:     "all enabled",
			settings: &entities.Settings{LogDenyList: true, ShowNotifications: true, SendEvent: true},
			wantLog:  true, wantNotify: true, wantEvent: true,
		},
		{
			name:     "all disabled",
			settings: &entities.Settings{},
		},
		{
			name:       "notifications only",
			settings:   &entities.Settings{ShowNotifications: true},
			wantNotify: true,
		},
		{
			name:     "nil settings fall back to defaults",
			settings: nil,
			// Defaults enable logging and notifications but not events.
			wantLog: true, wantNotify: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &memoryDenyLog{}
			var notified, evented bool
			svc := NewDenyReportService(log,
				func(ctx context.Context, d *entities.Denial) error { notified = true; return nil },
				func(ctx context.Context, d *entities.Denial) error { evented = true; return nil },
				nil)

			svc.ReportDeny(context.Background(), sampleDenial(), tt.settings)

			if got := len(log.denials) > 0; got != tt.wantLog {
				t.Errorf("logged = %v, want %v", got, tt.wantLog)
			}
			if notified != tt.wantNotify {
				t.Errorf("notified = %v, want %v", notified, tt.wantNotify)
			}
			if evented != tt.wantEvent {
				t.Errorf("evented = %v, want %v", evented, tt.wantEvent)
			}
		})
	}
}

func TestDenyReportService_SideEffectErrorsAreSwallowed(t *testing.T) {
	log := &memoryDenyLog{appendErr: errors.New("disk full")}
	svc := NewDenyReportService(log,
		func(ctx context.Context, d *entities.Denial) error { return errors.New("no frontend") },
		nil, nil)

	// Must not panic and must still record the last denial.
	svc.ReportDeny(context.Background(), sampleDenial(),
		&entities.Settings{LogDenyList: true, ShowNotifications: true})

	if svc.LastDenial() == nil {
		t.Error("LastDenial() should be set even when side effects fail")
	}
}

func TestDenyReportService_LastDenialIsACopy(t *testing.T) {
	svc := NewDenyReportService(nil, nil, nil, nil)
	svc.ReportDeny(context.Background(), sampleDenial(), &entities.Settings{})

	first := svc.LastDenial()
	first.UserID = "mallory"
	if svc.LastDenial().UserID != "alice" {
		t.Error("LastDenial() must return a copy")
	}
	if svc.LastDenial().Time.IsZero() {
		t.Error("ReportDeny() should stamp the denial time")
	}
}

func TestDenyReportService_RecentAndClear(t *testing.T) {
	log := &memoryDenyLog{}
	svc := NewDenyReportService(log, nil, nil, nil)
	ctx := context.Background()

	svc.ReportDeny(ctx, sampleDenial(), &entities.Settings{LogDenyList: true})

	recent, err := svc.RecentDenials(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDenials() error = %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("RecentDenials() returned %d entries, want 1", len(recent))
	}
	if err := svc.ClearDenials(ctx); err != nil {
		t.Fatalf("ClearDenials() error = %v", err)
	}
	recent, _ = svc.RecentDenials(ctx, 10)
	if len(recent) != 0 {
		t.Error("ClearDenials() should empty the log")
	}
}
