package internal

import (
	"context"
	"time"
)

type ctxKey string

const callerKey ctxKey = "caller"

// Caller is the verified identity attached to a request.
type Caller struct {
	UserID string
	Email  string
	Name   string
	Role   string
	// TokenID is the jti of the session token the caller presented.
	TokenID   string
	ExpiresAt time.Time
}

func ContextWithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFromContext(ctx context.Context) (*Caller, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(callerKey).(*Caller)
	return c, ok && c != nil
}

// WithTimeout falls back to 5s when duration is unset.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
