package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/frahmantamala/acuhire/internal/interview"
	"github.com/jmoiron/sqlx"
)

const statusActive = "active"

type PasscodeRepository struct {
	db *sqlx.DB
}

func NewPasscodeRepository(db *sqlx.DB) *PasscodeRepository {
	return &PasscodeRepository{db: db}
}

func (r *PasscodeRepository) FindActiveByPasscode(ctx context.Context, code string) (*interview.JobRef, error) {
	query := r.db.Rebind(`SELECT id, title, slug, company_id FROM jobs WHERE passcode = ? AND status = ? LIMIT 1`)

	var ref interview.JobRef
	if err := r.db.GetContext(ctx, &ref, query, code, statusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job by passcode: %w", err)
	}
	return &ref, nil
}
