package token

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new token row.
func (r *Repository) Insert(ctx context.Context, t Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO qr_tokens (token_value, student_id, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, FALSE)
	`, t.Value, t.StudentID, t.IssuedAt, t.ExpiresAt)
	return err
}

// Get returns the token or nil when absent.
func (r *Repository) Get(ctx context.Context, value string) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token_value, student_id, issued_at, expires_at, consumed
		FROM qr_tokens WHERE token_value = $1
	`, value)
	var t Token
	if err := row.Scan(&t.Value, &t.StudentID, &t.IssuedAt, &t.ExpiresAt, &t.Consumed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Consume flips consumed to true iff it is still false. The predicate makes
// the read-modify-write atomic; exactly one concurrent caller sees true.
func (r *Repository) Consume(ctx context.Context, value string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE qr_tokens SET consumed = TRUE
		WHERE token_value = $1 AND consumed = FALSE
	`, value)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired removes tokens whose expiry is before the cutoff.
func (r *Repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM qr_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
