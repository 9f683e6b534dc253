// Package analytics derives advisory signals from attendance history.
// Nothing here is persisted; every result is computed at call time against a
// snapshot and may lag live data by the polling interval.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/AntrikshVats/HostelManagement/internal/violation"
)

// Anomaly kinds.
const (
	KindExtendedAbsence  = "Extended Absence"
	KindNoRecentActivity = "No Recent Activity"
)

// inactiveLimit bounds the no-recent-activity scan on large populations.
const inactiveLimit = 10

// Anomaly is a computed, non-persisted flag on a student's pattern.
type Anomaly struct {
	StudentID   string             `json:"student_id"`
	StudentName string             `json:"student_name"`
	Kind        string             `json:"anomaly_type"`
	Description string             `json:"description"`
	DetectedAt  time.Time          `json:"detected_at"`
	Severity    violation.Severity `json:"severity"`
}

// OutRecord is a student whose latest event is OUT, with its timestamp.
type OutRecord struct {
	StudentID string
	Name      string
	LastOut   time.Time
}

// StudentRef identifies a student in inactivity results.
type StudentRef struct {
	StudentID string
	Name      string
}

// Absentee is a student OUT on many distinct days recently.
type Absentee struct {
	StudentID string
	Name      string
	OutDays   int
}

// LateOut is a student repeatedly exiting at or after curfew hour.
type LateOut struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"student_name"`
	LateCount int       `json:"late_count"`
	LastLate  time.Time `json:"last_late_time"`
}

// Store answers the history queries the analyzer needs.
type Store interface {
	LongOutStudents(ctx context.Context, outSince time.Time) ([]OutRecord, error)
	InactiveStudents(ctx context.Context, inactiveSince time.Time, limit int) ([]StudentRef, error)
	FrequentAbsentees(ctx context.Context, since time.Time, minOutDays int) ([]Absentee, error)
	LateOutOffenders(ctx context.Context, since time.Time, curfewHour, minCount int) ([]LateOut, error)
}

// Analyzer scans attendance history for unusual patterns.
type Analyzer struct {
	store      Store
	curfewHour int
	loc        *time.Location
	now        func() time.Time
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(store Store, curfewHour int, loc *time.Location) *Analyzer {
	if loc == nil {
		loc = time.UTC
	}
	return &Analyzer{store: store, curfewHour: curfewHour, loc: loc, now: time.Now}
}

// DetectAnomalies surfaces students OUT for more than 24 hours (High) and
// students with no activity for 7 days or ever (Medium, capped). Categories
// are reported independently; a student can appear in both.
func (a *Analyzer) DetectAnomalies(ctx context.Context) ([]Anomaly, error) {
	now := a.now()
	anomalies := []Anomaly{}

	longOut, err := a.store.LongOutStudents(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	for _, s := range longOut {
		anomalies = append(anomalies, Anomaly{
			StudentID:   s.StudentID,
			StudentName: s.Name,
			Kind:        KindExtendedAbsence,
			Description: fmt.Sprintf("Student has been OUT since %s", s.LastOut.In(a.loc).Format("2006-01-02 15:04")),
			DetectedAt:  now,
			Severity:    violation.SeverityHigh,
		})
	}

	inactive, err := a.store.InactiveStudents(ctx, now.AddDate(0, 0, -7), inactiveLimit)
	if err != nil {
		return nil, err
	}
	for _, s := range inactive {
		anomalies = append(anomalies, Anomaly{
			StudentID:   s.StudentID,
			StudentName: s.Name,
			Kind:        KindNoRecentActivity,
			Description: "No attendance records in the past 7 days",
			DetectedAt:  now,
			Severity:    violation.SeverityMedium,
		})
	}

	return anomalies, nil
}

// FrequentAbsentees returns students OUT on more than minOutDays distinct
// days within the window.
func (a *Analyzer) FrequentAbsentees(ctx context.Context, windowDays, minOutDays int) ([]Absentee, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	if minOutDays <= 0 {
		minOutDays = 10
	}
	return a.store.FrequentAbsentees(ctx, a.now().AddDate(0, 0, -windowDays), minOutDays)
}

// LateOutOffenders returns students with at least minCount OUT events at or
// after curfew hour within the window.
func (a *Analyzer) LateOutOffenders(ctx context.Context, windowDays, minCount int) ([]LateOut, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	if minCount <= 0 {
		minCount = 3
	}
	return a.store.LateOutOffenders(ctx, a.now().AddDate(0, 0, -windowDays), a.curfewHour, minCount)
}
