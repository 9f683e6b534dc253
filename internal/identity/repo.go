package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when no identity matches the given id.
var ErrNotFound = errors.New("identity not found")

// Repository looks up identities in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetStudent returns a student by id.
func (r *Repository) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, first_name, last_name, email, roll_number, department, year
		FROM students WHERE student_id = $1
	`, studentID)
	var s Student
	if err := row.Scan(&s.StudentID, &s.FirstName, &s.LastName, &s.Email, &s.RollNumber, &s.Department, &s.Year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// RegisterDevice ensures a scanner device record exists.
func (r *Repository) RegisterDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (subject, token, expires_at)
		VALUES ($1, $2, $3)
	`, subject, token, expiresAt)
	return err
}

// GetStudentByEmail returns a student and their stored password hash by
// login email.
func (r *Repository) GetStudentByEmail(ctx context.Context, email string) (*Student, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, first_name, last_name, email, roll_number, department, year, password_hash
		FROM students WHERE email = $1
	`, email)
	var s Student
	var hash string
	if err := row.Scan(&s.StudentID, &s.FirstName, &s.LastName, &s.Email, &s.RollNumber, &s.Department, &s.Year, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return &s, hash, nil
}

// GetEmployeeByEmail returns a staff member and their stored password hash
// by login email.
func (r *Repository) GetEmployeeByEmail(ctx context.Context, email string) (*Employee, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT employee_id, first_name, last_name, role, email, password_hash
		FROM employees WHERE email = $1
	`, email)
	var e Employee
	var hash string
	if err := row.Scan(&e.EmployeeID, &e.FirstName, &e.LastName, &e.StaffRole, &e.Email, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return &e, hash, nil
}
