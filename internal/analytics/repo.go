package analytics

import (
	"context"
	"database/sql"
	"time"
)

// Repository runs analytics queries against Postgres. Timestamps are stored
// UTC; hour and calendar-date comparisons convert into the facility zone in
// SQL so the results never depend on the server's TimeZone setting.
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

// LongOutStudents returns students whose latest event is OUT and older than
// the cutoff.
func (r *Repository) LongOutStudents(ctx context.Context, outSince time.Time) ([]OutRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.first_name || ' ' || s.last_name, a.timestamp
		FROM students s
		JOIN attendance a ON a.student_id = s.student_id
		JOIN (
			SELECT student_id, MAX(seq) AS max_seq
			FROM attendance GROUP BY student_id
		) latest ON latest.student_id = a.student_id AND latest.max_seq = a.seq
		WHERE a.type = 'OUT' AND a.timestamp < $1
		ORDER BY a.timestamp
	`, outSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []OutRecord
	for rows.Next() {
		var o OutRecord
		if err := rows.Scan(&o.StudentID, &o.Name, &o.LastOut); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// InactiveStudents returns students with no events at all, or none since the
// cutoff. Bounded by limit.
func (r *Repository) InactiveStudents(ctx context.Context, inactiveSince time.Time, limit int) ([]StudentRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.first_name || ' ' || s.last_name
		FROM students s
		LEFT JOIN attendance a ON a.student_id = s.student_id
		GROUP BY s.student_id, s.first_name, s.last_name
		HAVING MAX(a.timestamp) < $1 OR MAX(a.timestamp) IS NULL
		LIMIT $2
	`, inactiveSince, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StudentRef
	for rows.Next() {
		var s StudentRef
		if err := rows.Scan(&s.StudentID, &s.Name); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// FrequentAbsentees returns students OUT on more than minOutDays distinct
// facility-local days since the cutoff.
func (r *Repository) FrequentAbsentees(ctx context.Context, since time.Time, minOutDays int) ([]Absentee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.first_name || ' ' || s.last_name,
		       COUNT(DISTINCT (a.timestamp AT TIME ZONE $3)::date)
		FROM students s
		JOIN attendance a ON a.student_id = s.student_id
		WHERE a.timestamp > $1 AND a.type = 'OUT'
		GROUP BY s.student_id, s.first_name, s.last_name
		HAVING COUNT(DISTINCT (a.timestamp AT TIME ZONE $3)::date) > $2
		ORDER BY COUNT(DISTINCT (a.timestamp AT TIME ZONE $3)::date) DESC
	`, since, minOutDays, r.tz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Absentee
	for rows.Next() {
		var a Absentee
		if err := rows.Scan(&a.StudentID, &a.Name, &a.OutDays); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// LateOutOffenders returns students with at least minCount OUT events at or
// after the curfew hour since the cutoff. The hour is the facility-local
// hour: a 23:00 IST exit counts even though it is stored as 17:30 UTC.
func (r *Repository) LateOutOffenders(ctx context.Context, since time.Time, curfewHour, minCount int) ([]LateOut, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.student_id, s.first_name || ' ' || s.last_name,
		       COUNT(a.attendance_id), MAX(a.timestamp)
		FROM students s
		JOIN attendance a ON a.student_id = s.student_id
		WHERE a.timestamp > $1 AND a.type = 'OUT'
		  AND EXTRACT(HOUR FROM a.timestamp AT TIME ZONE $4) >= $2
		GROUP BY s.student_id, s.first_name, s.last_name
		HAVING COUNT(a.attendance_id) >= $3
		ORDER BY COUNT(a.attendance_id) DESC
	`, since, curfewHour, minCount, r.tz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LateOut
	for rows.Next() {
		var l LateOut
		if err := rows.Scan(&l.StudentID, &l.Name, &l.LateCount, &l.LastLate); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
