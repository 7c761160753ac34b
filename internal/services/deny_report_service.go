package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/callguard/callguard/internal/entities"
	"github.com/callguard/callguard/internal/infrastructure/logging"
	"github.com/callguard/callguard/internal/repositories"
	"github.com/callguard/callguard/internal/services/authorization"
)

// NotifyFunc pushes a blocked-call notification to the host platform.
type NotifyFunc func(ctx context.Context, denial *entities.Denial) error

// EventFunc fires a platform event describing a blocked call so other
// automations can react to it.
type EventFunc func(ctx context.Context, denial *entities.Denial) error

// DenyReportService handles every denied call: it persists the denial,
// notifies the user, and fires the platform event, each gated by the
// active settings. Side-effect failures are logged and swallowed so
// reporting can never change a verdict.
type DenyReportService struct {
	log    repositories.DenyLogRepository
	notify NotifyFunc
	event  EventFunc
	logger *slog.Logger

	mu   sync.Mutex
	last *entities.Denial
}

// NewDenyReportService creates a new DenyReportService. log, notify, and
// event may each be nil; the matching side effect is then skipped.
func NewDenyReportService(log repositories.DenyLogRepository, notify NotifyFunc, event EventFunc, logger *slog.Logger) *DenyReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DenyReportService{log: log, notify: notify, event: event, logger: logger}
}

// ReportDeny records one denial and runs the configured side effects.
func (s *DenyReportService) ReportDeny(ctx context.Context, denial *entities.Denial, settings *entities.Settings) {
	if denial == nil {
		return
	}
	if denial.Time.IsZero() {
		denial.Time = time.Now()
	}
	if settings == nil {
		settings = entities.DefaultSettings()
	}

	s.mu.Lock()
	s.last = denial
	s.mu.Unlock()

	if settings.LogDenyList && s.log != nil {
		if err := s.log.Append(ctx, denial); err != nil {
			s.logger.Error("failed to persist denial", logging.Err(err), logging.UserID(denial.UserID))
		}
	}
	if settings.ShowNotifications && s.notify != nil {
		if err := s.notify(ctx, denial); err != nil {
			s.logger.Error("failed to send deny notification", logging.Err(err), logging.UserID(denial.UserID))
		}
	}
	if settings.SendEvent && s.event != nil {
		if err := s.event(ctx, denial); err != nil {
			s.logger.Error("failed to fire deny event", logging.Err(err), logging.UserID(denial.UserID))
		}
	}
}

// LastDenial returns the most recent denial seen since startup, or nil.
// It backs the status endpoint so a user can ask "why was I just blocked".
func (s *DenyReportService) LastDenial() *entities.Denial {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	last := *s.last
	return &last
}

// RecentDenials returns up to limit persisted denials, newest first.
func (s *DenyReportService) RecentDenials(ctx context.Context, limit int) ([]*entities.Denial, error) {
	if s.log == nil {
		return nil, nil
	}
	return s.log.Recent(ctx, limit)
}

// ClearDenials removes all persisted denials.
func (s *DenyReportService) ClearDenials(ctx context.Context) error {
	if s.log == nil {
		return nil
	}
	return s.log.Clear(ctx)
}

var _ authorization.DenyReporter = (*DenyReportService)(nil)
