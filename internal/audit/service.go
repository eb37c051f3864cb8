package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/acuhire/internal/core/events"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Publisher is satisfied by *events.EventBus.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo   RepositoryAPI
	bus    Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, bus Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Record appends e. The id and timestamp are always assigned here.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.ActionType == "" {
		return errors.New("audit: action type is required")
	}
	e.ID = uuid.NewString()
	e.Timestamp = s.now().UTC()

	if err := s.repo.Append(ctx, ToDataModel(&e)); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if s.bus != nil {
		status := ""
		if e.Details != nil {
			status = e.Details.Status
		}
		evt := events.NewAuditRecordedEvent(e.ID, string(e.ActionType), e.UserID, e.IPAddress, status, e.Timestamp)
		// detached so fan-out outlives the request
		if err := s.bus.Publish(context.WithoutCancel(ctx), evt); err != nil {
			s.logger.Warn("failed to publish audit event", "entry_id", e.ID, "error", err)
		}
	}
	return nil
}

// List applies the page bounds and reports the ones it actually used.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	rows, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	page := &Page{Items: make([]Entry, 0, len(rows)), Total: total, Limit: f.Limit, Offset: f.Offset}
	for _, row := range rows {
		page.Items = append(page.Items, FromDataModel(row))
	}
	return page, nil
}

// RecordOrWarn is for callers whose primary operation must not fail because
// auditing did.
func RecordOrWarn(ctx context.Context, r Recorder, lg *slog.Logger, e Entry) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, e); err != nil {
		lg.Warn("audit write failed", "action", e.ActionType, "user_id", e.UserID, "error", err)
	}
}
