package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/job"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	maxPasscodeAttempts = 5
	defaultPageSize     = 20
	maxPageSize         = 100
)

type Service struct {
	repo      RepositoryAPI
	audit     audit.Recorder
	logger    *slog.Logger
	now       func() time.Time
	passcodes func() (string, error)
}

func NewService(repo RepositoryAPI, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		audit:     recorder,
		logger:    logger,
		now:       time.Now,
		passcodes: GeneratePasscode,
	}
}

// Create publishes a new active posting with a fresh passcode. A passcode
// collision with another active posting is retried with a new code.
func (s *Service) Create(ctx context.Context, caller *internal.Caller, dto CreateJobDTO, meta audit.RequestMeta) (*Job, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	j := &Job{
		ID:          uuid.NewString(),
		CompanyID:   caller.UserID,
		Title:       dto.Title,
		Slug:        slug.Make(dto.Title),
		Description: dto.Description,
		Location:    dto.Location,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var err error
	for attempt := 1; attempt <= maxPasscodeAttempts; attempt++ {
		if j.Passcode, err = s.passcodes(); err != nil {
			return nil, internal.NewInternalError("failed to create job", err)
		}
		err = s.repo.Create(ctx, ToDataModel(j))
		if !errors.Is(err, ErrPasscodeCollision) {
			break
		}
		s.logger.Warn("passcode collision, regenerating", "attempt", attempt)
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to create job", err)
	}

	s.logger.Info("job created", "job_id", j.ID, "company_id", j.CompanyID)
	audit.RecordOrWarn(ctx, s.audit, s.logger, audit.NewEntry(audit.ActionDataModification, caller.UserID, meta, &audit.Details{
		Resource:    "job",
		ResourceID:  j.ID,
		Description: "job posting created",
		Status:      audit.StatusSuccess,
	}))
	return j, nil
}

func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]*Job, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, internal.NewInternalError("failed to list jobs", err)
	}
	return fromRows(rows), nil
}

func (s *Service) ListMine(ctx context.Context, caller *internal.Caller) ([]*Job, error) {
	rows, err := s.repo.ListByCompany(ctx, caller.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list jobs", err)
	}
	return fromRows(rows), nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to get job", err)
	}
	if row == nil {
		return nil, ErrJobNotFound
	}
	return FromDataModel(row), nil
}

// Close flips an active posting to closed. Its passcode stops working at once.
func (s *Service) Close(ctx context.Context, caller *internal.Caller, id string, meta audit.RequestMeta) (*Job, error) {
	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.CompanyID != caller.UserID {
		return nil, ErrNotOwner
	}
	if !j.IsActive() {
		return nil, ErrJobClosed
	}

	now := s.now().UTC()
	if err := s.repo.Close(ctx, j.ID, now); err != nil {
		if errors.Is(err, ErrJobClosed) {
			return nil, ErrJobClosed
		}
		return nil, internal.NewInternalError("failed to close job", err)
	}
	j.Status = StatusClosed
	j.ClosedAt = &now
	j.UpdatedAt = now

	audit.RecordOrWarn(ctx, s.audit, s.logger, audit.NewEntry(audit.ActionDataModification, caller.UserID, meta, &audit.Details{
		Resource:    "job",
		ResourceID:  j.ID,
		Description: "job posting closed",
		Status:      audit.StatusSuccess,
	}))
	return j, nil
}

func fromRows(rows []*datamodel.Job) []*Job {
	out := make([]*Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromDataModel(r))
	}
	return out
}
