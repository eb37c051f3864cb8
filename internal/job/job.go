package job

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/job"
)

type Status string

const (
	StatusActive Status = datamodel.StatusActive
	StatusClosed Status = datamodel.StatusClosed
)

var (
	ErrJobNotFound = internal.NewNotFoundError("Job not found", internal.ErrCodeJobNotFound)
	ErrNotOwner    = internal.NewForbiddenError("Only the owning company can change this job", internal.ErrCodeNotOwner)
	ErrJobClosed   = internal.NewConflictError("Job is already closed", internal.ErrCodeJobClosed)

	// ErrPasscodeCollision is returned by the repository when the generated
	// passcode is already held by another active posting.
	ErrPasscodeCollision = errors.New("passcode already in use")
)

type Job struct {
	ID          string
	CompanyID   string
	Title       string
	Slug        string
	Description string
	Location    string
	Passcode    string
	Status      Status
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (j *Job) IsActive() bool {
	return j.Status == StatusActive
}

type RepositoryAPI interface {
	Create(ctx context.Context, j *datamodel.Job) error
	GetByID(ctx context.Context, id string) (*datamodel.Job, error)
	ListActive(ctx context.Context, limit, offset int) ([]*datamodel.Job, error)
	ListByCompany(ctx context.Context, companyID string) ([]*datamodel.Job, error)
	Close(ctx context.Context, id string, at time.Time) error
}

type ServiceAPI interface {
	Create(ctx context.Context, caller *internal.Caller, dto CreateJobDTO, meta audit.RequestMeta) (*Job, error)
	ListActive(ctx context.Context, limit, offset int) ([]*Job, error)
	ListMine(ctx context.Context, caller *internal.Caller) ([]*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Close(ctx context.Context, caller *internal.Caller, id string, meta audit.RequestMeta) (*Job, error)
}

func ToDataModel(j *Job) *datamodel.Job {
	return &datamodel.Job{
		ID:          j.ID,
		CompanyID:   j.CompanyID,
		Title:       j.Title,
		Slug:        j.Slug,
		Description: j.Description,
		Location:    j.Location,
		Passcode:    j.Passcode,
		Status:      string(j.Status),
		ClosedAt:    j.ClosedAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func FromDataModel(d *datamodel.Job) *Job {
	if d == nil {
		return nil
	}
	return &Job{
		ID:          d.ID,
		CompanyID:   d.CompanyID,
		Title:       d.Title,
		Slug:        d.Slug,
		Description: d.Description,
		Location:    d.Location,
		Passcode:    d.Passcode,
		Status:      Status(d.Status),
		ClosedAt:    d.ClosedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
