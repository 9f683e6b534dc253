package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Service issues and validates presence tokens.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a service with the configured token lifetime.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// Issue mints a fresh token for the student. Earlier live tokens for the
// same student stay valid; each is independently consumable.
func (s *Service) Issue(ctx context.Context, studentID string) (Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, fmt.Errorf("generate token value: %w", err)
	}
	now := s.now()
	t := Token{
		Value:     base64.RawURLEncoding.EncodeToString(raw),
		StudentID: studentID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// Validate consumes the token and returns its owner. Exactly one caller can
// succeed per value: expiry is checked before the consume step so an expired
// token reports ErrExpired forever, and the conditional update decides races
// between live validators.
func (s *Service) Validate(ctx context.Context, value string) (string, error) {
	t, err := s.store.Get(ctx, value)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", ErrNotFound
	}
	if s.now().After(t.ExpiresAt) {
		return "", ErrExpired
	}
	if t.Consumed {
		return "", ErrConsumed
	}
	won, err := s.store.Consume(ctx, value)
	if err != nil {
		return "", err
	}
	if !won {
		// Another validator got here between our read and the update.
		return "", ErrConsumed
	}
	return t.StudentID, nil
}

// CleanupExpired reclaims tokens past expiry. Not needed for correctness.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}
