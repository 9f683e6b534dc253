package violation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists violations in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a violation. A partial unique index on
// (student_id, violation_date, violation_type) WHERE NOT resolved enforces
// the at-most-one-unresolved-per-day invariant; conflicts map to ErrDuplicate.
func (r *Repository) Insert(ctx context.Context, v Violation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO violations (violation_id, student_id, violation_type, violation_date, description, severity, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, v.ID, v.StudentID, string(v.Kind), v.Date, v.Description, string(v.Severity))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// HasUnresolvedCurfew reports whether an unresolved curfew violation exists
// for the student on the given date.
func (r *Repository) HasUnresolvedCurfew(ctx context.Context, studentID string, date time.Time) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM violations
			WHERE student_id = $1 AND violation_type = 'Curfew'
			  AND violation_date = $2 AND resolved = FALSE
		)
	`, studentID, date)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// StudentsCurrentlyOut returns every student whose most recent attendance
// event is OUT. Students with no events at all are never included.
func (r *Repository) StudentsCurrentlyOut(ctx context.Context) ([]OutStudent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.first_name || ' ' || s.last_name, a.timestamp
		FROM students s
		JOIN attendance a ON a.student_id = s.student_id
		JOIN (
			SELECT student_id, MAX(seq) AS max_seq
			FROM attendance GROUP BY student_id
		) latest ON latest.student_id = a.student_id AND latest.max_seq = a.seq
		WHERE a.type = 'OUT'
		ORDER BY a.timestamp
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []OutStudent
	for rows.Next() {
		var o OutStudent
		if err := rows.Scan(&o.StudentID, &o.Name, &o.LastOut); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// ListUnresolved returns open violations, newest first.
func (r *Repository) ListUnresolved(ctx context.Context, limit int) ([]Violation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT violation_id, student_id, violation_type, violation_date, description, severity, resolved, resolved_by, resolved_at, created_at
		FROM violations
		WHERE resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Violation
	for rows.Next() {
		var v Violation
		var kind, severity string
		if err := rows.Scan(&v.ID, &v.StudentID, &kind, &v.Date, &v.Description, &severity, &v.Resolved, &v.ResolvedBy, &v.ResolvedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Kind, v.Severity = Kind(kind), Severity(severity)
		res = append(res, v)
	}
	return res, rows.Err()
}

// Resolve marks a violation resolved. Out of the detection path; called by
// the admin boundary.
func (r *Repository) Resolve(ctx context.Context, violationID, resolvedBy string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE violations
		SET resolved = TRUE, resolved_by = $2, resolved_at = NOW()
		WHERE violation_id = $1 AND resolved = FALSE
	`, violationID, resolvedBy)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
