package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]*Token)}
}

func (m *memStore) Insert(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := t
	m.tokens[t.Value] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, value string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[value]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Consume(_ context.Context, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[value]
	if !ok || t.Consumed {
		return false, nil
	}
	t.Consumed = true
	return true, nil
}

func (m *memStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for v, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, v)
			n++
		}
	}
	return n, nil
}

func TestIssueAndValidateOnce(t *testing.T) {
	svc := NewService(newMemStore(), 5*time.Minute)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Value)
	assert.GreaterOrEqual(t, len(tok.Value), 43) // 32 random bytes, base64url
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), tok.ExpiresAt, time.Second)

	owner, err := svc.Validate(ctx, tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "s1", owner)

	_, err = svc.Validate(ctx, tok.Value)
	assert.ErrorIs(t, err, ErrConsumed)
}

func TestValidateUnknownToken(t *testing.T) {
	svc := NewService(newMemStore(), 5*time.Minute)
	_, err := svc.Validate(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredTokenStaysExpired(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, 5*time.Minute)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "s1")
	require.NoError(t, err)

	// Move the clock past expiry.
	svc.now = func() time.Time { return tok.ExpiresAt.Add(time.Second) }

	for i := 0; i < 3; i++ {
		_, err = svc.Validate(ctx, tok.Value)
		assert.ErrorIs(t, err, ErrExpired)
	}

	// Expiry checks must never mark the token consumed.
	stored, err := store.Get(ctx, tok.Value)
	require.NoError(t, err)
	assert.False(t, stored.Consumed)
}

func TestMultipleLiveTokensPerStudent(t *testing.T) {
	svc := NewService(newMemStore(), 5*time.Minute)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "s1")
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, second.Value)

	// Issuing the second token must not invalidate the first.
	owner, err := svc.Validate(ctx, first.Value)
	require.NoError(t, err)
	assert.Equal(t, "s1", owner)
	owner, err = svc.Validate(ctx, second.Value)
	require.NoError(t, err)
	assert.Equal(t, "s1", owner)
}

func TestConcurrentValidationSingleWinner(t *testing.T) {
	svc := NewService(newMemStore(), 5*time.Minute)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "s1")
	require.NoError(t, err)

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Validate(ctx, tok.Value)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, consumed int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			assert.ErrorIs(t, err, ErrConsumed)
			consumed++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, consumed)
}

func TestCleanupExpired(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, time.Minute)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "s1")
	require.NoError(t, err)

	svc.now = func() time.Time { return tok.ExpiresAt.Add(time.Minute) }
	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = svc.Validate(ctx, tok.Value)
	assert.ErrorIs(t, err, ErrNotFound)
}
