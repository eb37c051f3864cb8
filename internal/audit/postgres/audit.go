package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/acuhire/internal/audit"
	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, log *datamodel.AuditLog) error {
	if log.ID == "" {
		return errors.New("audit log id is required")
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// Update exists so that a mutation attempt surfaces ImmutableRecordError from
// the model hooks instead of being silently ignored.
func (r *AuditRepository) Update(ctx context.Context, log *datamodel.AuditLog) error {
	return r.db.WithContext(ctx).Save(log).Error
}

func (r *AuditRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&datamodel.AuditLog{ID: id}).Error
}

func (r *AuditRepository) GetByID(ctx context.Context, id string) (*datamodel.AuditLog, error) {
	var log datamodel.AuditLog
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

func (r *AuditRepository) List(ctx context.Context, f audit.Filter) ([]*datamodel.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&datamodel.AuditLog{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ActionType != "" {
		q = q.Where("action_type = ?", string(f.ActionType))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []*datamodel.AuditLog
	err := q.Order("timestamp DESC").Limit(f.Limit).Offset(f.Offset).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
