// Package attendance tracks student IN/OUT movement and composes token
// validation, direction inference, and curfew detection into the scan and
// sweep entry points the HTTP layer calls.
package attendance

import (
	"context"
	"time"
)

// Direction is which way the student crossed the gate.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Event is one recorded gate crossing. Append-only, never mutated.
type Event struct {
	ID         string    `json:"attendance_id"`
	StudentID  string    `json:"student_id"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  Direction `json:"type"`
	Location   string    `json:"location"`
	Remarks    *string   `json:"remarks,omitempty"`
	VerifiedBy *string   `json:"verified_by,omitempty"`
}

// RosterEntry is an event annotated with student identity for the daily view.
type RosterEntry struct {
	Event
	RollNumber  string `json:"roll_number"`
	StudentName string `json:"student_name"`
}

// Stats summarizes a student's attendance for one month.
type Stats struct {
	StudentID         string     `json:"student_id"`
	TotalRecords      int        `json:"total_records"`
	InCount           int        `json:"in_count"`
	OutCount          int        `json:"out_count"`
	CurrentStatus     *Direction `json:"current_status,omitempty"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
	MonthlyPercentage float64    `json:"monthly_percentage"`
}

// Store persists events. The last event per student defines current state.
type Store interface {
	LastEvent(ctx context.Context, studentID string) (*Event, error)
	RecentEvent(ctx context.Context, studentID string, window time.Duration) (*Event, error)
	Insert(ctx context.Context, e Event) (Event, error)
	History(ctx context.Context, studentID string, start, end *time.Time) ([]Event, error)
	EventsBetween(ctx context.Context, studentID string, from, to time.Time) ([]Event, error)
	Roster(ctx context.Context, from, to time.Time) ([]RosterEntry, error)
}
