package auth

import (
	"context"
	"log/slog"
	"net/url"

	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
)

// ResetNotifier delivers a reset token to its owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, u *coreUser.User, tok Token) error
}

// LogResetNotifier writes the reset link to the log. The link itself is only
// logged when exposeLink is set, which production never does.
type LogResetNotifier struct {
	logger     *slog.Logger
	resetURL   string
	exposeLink bool
}

func NewLogResetNotifier(logger *slog.Logger, resetURL string, exposeLink bool) *LogResetNotifier {
	return &LogResetNotifier{logger: logger, resetURL: resetURL, exposeLink: exposeLink}
}

func (n *LogResetNotifier) SendPasswordReset(_ context.Context, u *coreUser.User, tok Token) error {
	if !n.exposeLink {
		n.logger.Info("password reset issued", "user_id", u.ID, "expires_at", tok.ExpiresAt)
		return nil
	}
	n.logger.Info("password reset issued", "user_id", u.ID, "expires_at", tok.ExpiresAt, "link", ResetLink(n.resetURL, tok.Value))
	return nil
}

// ResetLink appends the token to the frontend reset page as ?token=.
func ResetLink(resetURL, token string) string {
	parsed, err := url.Parse(resetURL)
	if err != nil {
		return resetURL
	}
	q := parsed.Query()
	q.Set("token", token)
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
