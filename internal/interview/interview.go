package interview

import (
	"context"
	"strings"

	"github.com/frahmantamala/acuhire/internal"
)

// passcodes are short; anything longer cannot exist and skips the lookup
const maxCodeLength = 64

// ErrPasscodeNotFound covers wrong, closed and empty codes alike.
var ErrPasscodeNotFound = internal.NewNotFoundError("Invalid or inactive interview code", internal.ErrCodePasscodeNotFound)

// JobRef identifies the posting a passcode unlocks.
type JobRef struct {
	ID        string `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Slug      string `json:"slug" db:"slug"`
	CompanyID string `json:"companyId" db:"company_id"`
}

type RepositoryAPI interface {
	// FindActiveByPasscode returns nil, nil when no active posting matches.
	FindActiveByPasscode(ctx context.Context, code string) (*JobRef, error)
}

type ServiceAPI interface {
	Redeem(ctx context.Context, code string) (*JobRef, error)
}

// NormalizeCode trims and upper-cases; stored passcodes are upper-case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
