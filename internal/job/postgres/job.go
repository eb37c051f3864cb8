package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/job"
	"github.com/frahmantamala/acuhire/internal/job"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) job.RepositoryAPI {
	return &JobRepository{db: db}
}

// Create maps a hit on the active-passcode unique index to
// job.ErrPasscodeCollision so the service can retry with a new code.
func (r *JobRepository) Create(ctx context.Context, j *datamodel.Job) error {
	err := r.db.WithContext(ctx).Create(j).Error
	if err != nil && isUniqueViolation(err) {
		return job.ErrPasscodeCollision
	}
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*datamodel.Job, error) {
	var j datamodel.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (r *JobRepository) ListActive(ctx context.Context, limit, offset int) ([]*datamodel.Job, error) {
	var jobs []*datamodel.Job
	err := r.db.WithContext(ctx).
		Where("status = ?", datamodel.StatusActive).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) ListByCompany(ctx context.Context, companyID string) ([]*datamodel.Job, error) {
	var jobs []*datamodel.Job
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

func (r *JobRepository) Close(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&datamodel.Job{}).
		Where("id = ? AND status = ?", id, datamodel.StatusActive).
		Updates(map[string]interface{}{
			"status":     datamodel.StatusClosed,
			"closed_at":  at,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return job.ErrJobClosed
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
