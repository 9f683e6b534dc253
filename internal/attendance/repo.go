package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AntrikshVats/HostelManagement/internal/identity"
)

// Repository persists attendance events in Postgres. Timestamps are stored
// UTC; queries that reason about calendar dates shift them into the facility
// zone first, so day boundaries never depend on the server's TimeZone
// setting.
type Repository struct {
	db *sql.DB
	tz string
}

// NewRepository creates a repo. facilityTZ is an IANA zone name; empty means
// UTC.
func NewRepository(db *sql.DB, facilityTZ string) *Repository {
	if facilityTZ == "" {
		facilityTZ = "UTC"
	}
	return &Repository{db: db, tz: facilityTZ}
}

// LastEvent returns the student's most recent event, or nil when none exist.
// seq is monotonic with insertion, so it both orders by time and breaks
// timestamp ties on insertion order.
func (r *Repository) LastEvent(ctx context.Context, studentID string) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT attendance_id, student_id, timestamp, type, location, remarks, verified_by
		FROM attendance
		WHERE student_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, studentID)
	return scanEvent(row)
}

// RecentEvent returns an event within the cooldown window, or nil.
func (r *Repository) RecentEvent(ctx context.Context, studentID string, window time.Duration) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT attendance_id, student_id, timestamp, type, location, remarks, verified_by
		FROM attendance
		WHERE student_id = $1 AND timestamp > NOW() - ($2 * interval '1 second')
		ORDER BY timestamp DESC
		LIMIT 1
	`, studentID, window.Seconds())
	return scanEvent(row)
}

// Insert appends a new event. Events are never updated or deleted.
func (r *Repository) Insert(ctx context.Context, e Event) (Event, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (attendance_id, student_id, timestamp, type, location, remarks, verified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.StudentID, e.Timestamp, string(e.Direction), e.Location, e.Remarks, e.VerifiedBy)
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// History returns events most recent first, optionally bounded by
// facility-local calendar dates.
func (r *Repository) History(ctx context.Context, studentID string, start, end *time.Time) ([]Event, error) {
	query, args := historyQuery(studentID, start, end, r.tz)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// EventsBetween returns events in [from, to), oldest first.
func (r *Repository) EventsBetween(ctx context.Context, studentID string, from, to time.Time) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT attendance_id, student_id, timestamp, type, location, remarks, verified_by
		FROM attendance
		WHERE student_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp
	`, studentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// Roster returns all events in [from, to) with student identity, newest first.
func (r *Repository) Roster(ctx context.Context, from, to time.Time) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.attendance_id, a.student_id, a.timestamp, a.type, a.location, a.remarks, a.verified_by,
		       s.roll_number, s.first_name || ' ' || s.last_name
		FROM attendance a
		JOIN students s ON s.student_id = a.student_id
		WHERE a.timestamp >= $1 AND a.timestamp < $2
		ORDER BY a.timestamp DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		var direction string
		if err := rows.Scan(&entry.ID, &entry.StudentID, &entry.Timestamp, &direction,
			&entry.Location, &entry.Remarks, &entry.VerifiedBy, &entry.RollNumber, &entry.StudentName); err != nil {
			return nil, err
		}
		entry.Direction = Direction(direction)
		res = append(res, entry)
	}
	return res, rows.Err()
}

// StudentsByStatus returns every student whose latest event matches the
// given direction.
func (r *Repository) StudentsByStatus(ctx context.Context, direction Direction) ([]identity.Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.first_name, s.last_name, s.email, s.roll_number, s.department, s.year
		FROM students s
		JOIN attendance a ON a.student_id = s.student_id
		JOIN (
			SELECT student_id, MAX(seq) AS max_seq
			FROM attendance GROUP BY student_id
		) latest ON latest.student_id = a.student_id AND latest.max_seq = a.seq
		WHERE a.type = $1
		ORDER BY s.roll_number
	`, string(direction))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []identity.Student
	for rows.Next() {
		var s identity.Student
		if err := rows.Scan(&s.StudentID, &s.FirstName, &s.LastName, &s.Email, &s.RollNumber, &s.Department, &s.Year); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// historyQuery builds the filtered select. The bounds are calendar dates, so
// the stored UTC instant is converted with AT TIME ZONE before the ::date
// cast; a 23:30 IST event belongs to the IST date, not the UTC one.
func historyQuery(studentID string, start, end *time.Time, tz string) (string, []any) {
	query := `
		SELECT attendance_id, student_id, timestamp, type, location, remarks, verified_by
		FROM attendance WHERE student_id = $1`
	args := []any{studentID}
	if start != nil || end != nil {
		args = append(args, tz)
	}
	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" AND (timestamp AT TIME ZONE $2)::date >= $%d::date", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND (timestamp AT TIME ZONE $2)::date <= $%d::date", len(args))
	}
	query += " ORDER BY timestamp DESC"
	return query, args
}

func scanEvent(row *sql.Row) (*Event, error) {
	var e Event
	var direction string
	if err := row.Scan(&e.ID, &e.StudentID, &e.Timestamp, &direction, &e.Location, &e.Remarks, &e.VerifiedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Direction = Direction(direction)
	return &e, nil
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var res []Event
	for rows.Next() {
		var e Event
		var direction string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Timestamp, &direction, &e.Location, &e.Remarks, &e.VerifiedBy); err != nil {
			return nil, err
		}
		e.Direction = Direction(direction)
		res = append(res, e)
	}
	return res, rows.Err()
}
