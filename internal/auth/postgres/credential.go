package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/acuhire/internal/auth"
	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/user"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// CredentialRepository is the gorm-backed credential store. Emails arrive
// normalised; the unique index on users.email is the only duplicate check.
type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Create(ctx context.Context, u *coreUser.User) error {
	err := r.db.WithContext(ctx).Create(coreUser.ToDataModel(u)).Error
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*coreUser.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*coreUser.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *CredentialRepository) first(ctx context.Context, query string, arg interface{}) (*coreUser.User, error) {
	var row datamodel.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return coreUser.FromDataModel(&row), nil
}

func (r *CredentialRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&datamodel.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update password: user %s not found", id)
	}
	return nil
}

func (r *CredentialRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&datamodel.User{}).Where("id = ?", id).
		UpdateColumn("last_login", at).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
