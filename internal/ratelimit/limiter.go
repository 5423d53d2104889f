// Package ratelimit throttles how fast a single user can drive the bot.
package ratelimit

import (
	"context"
	"time"
)

// Result describes a single rate limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter evaluates whether an action identified by key is within its budget.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
