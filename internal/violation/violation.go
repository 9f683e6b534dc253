// Package violation detects and records hostel policy violations from the
// attendance event stream.
package violation

import (
	"context"
	"errors"
	"time"
)

// Kind classifies a violation.
type Kind string

const (
	KindCurfew          Kind = "Curfew"
	KindFrequentAbsence Kind = "Frequent_Absence"
	KindMultipleOut     Kind = "Multiple_OUT"
	KindOther           Kind = "Other"
)

// Severity grades a violation.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Violation is a recorded policy breach. Created by the detector; only an
// external resolution action mutates it afterwards.
type Violation struct {
	ID          string     `json:"violation_id"`
	StudentID   string     `json:"student_id"`
	Kind        Kind       `json:"violation_type"`
	Date        time.Time  `json:"violation_date"`
	Description string     `json:"description"`
	Severity    Severity   `json:"severity"`
	Resolved    bool       `json:"resolved"`
	ResolvedBy  *string    `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OutStudent is a student whose most recent attendance event is OUT.
type OutStudent struct {
	StudentID string
	Name      string
	LastOut   time.Time
}

// SweepResult summarizes one student flagged by the curfew sweep.
type SweepResult struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"student_name"`
	LastOut   time.Time `json:"last_out"`
	HoursOut  float64   `json:"hours_out"`
}

// ErrDuplicate reports that an unresolved violation of the same kind already
// exists for the student and date. The detector treats it as a benign no-op.
var ErrDuplicate = errors.New("violation already recorded for this date")

// Store persists violations and answers the presence queries the sweep needs.
type Store interface {
	Insert(ctx context.Context, v Violation) error
	HasUnresolvedCurfew(ctx context.Context, studentID string, date time.Time) (bool, error)
	StudentsCurrentlyOut(ctx context.Context) ([]OutStudent, error)
}
