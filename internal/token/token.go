// Package token mints and validates the single-use, time-limited presence
// tokens students present at the gate.
package token

import (
	"context"
	"errors"
	"time"
)

// Token is a single-use presence credential. Immutable once consumed.
type Token struct {
	Value     string
	StudentID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Validation outcomes. The HTTP layer collapses all three into one generic
// rejection so callers cannot probe which case they hit.
var (
	ErrNotFound = errors.New("token not found")
	ErrExpired  = errors.New("token expired")
	ErrConsumed = errors.New("token already used")
)

// Store persists tokens. Consume must be a single conditional update guarded
// by consumed = false so concurrent validators of the same value race safely.
type Store interface {
	Insert(ctx context.Context, t Token) error
	Get(ctx context.Context, value string) (*Token, error)
	Consume(ctx context.Context, value string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
