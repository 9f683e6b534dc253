package attendance

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/AntrikshVats/HostelManagement/internal/metrics"
	"github.com/AntrikshVats/HostelManagement/internal/token"
	"github.com/AntrikshVats/HostelManagement/internal/violation"
)

// Errors surfaced to the boundary layer.
var (
	// ErrInvalidToken deliberately covers not-found, expired, and
	// already-used so callers cannot enumerate token state.
	ErrInvalidToken = errors.New("invalid, expired, or already used code")
	ErrScanTooSoon  = errors.New("attendance already marked recently")
	ErrInvalidRange = errors.New("end date is before start date")
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
)

// TokenValidator consumes a presence token and returns its owner.
type TokenValidator interface {
	Validate(ctx context.Context, value string) (string, error)
}

// CurfewDetector reacts to recorded events and runs the nightly sweep.
type CurfewDetector interface {
	CheckReturn(ctx context.Context, studentID, direction string, at time.Time) error
	Sweep(ctx context.Context) ([]violation.SweepResult, error)
}

// Presence mirrors the latest direction into a cache. Best effort.
type Presence interface {
	Set(ctx context.Context, studentID, direction string) error
}

// Service is the attendance engine facade.
type Service struct {
	store    Store
	tokens   TokenValidator
	detector CurfewDetector
	presence Presence
	cooldown time.Duration // 0 disables duplicate-scan suppression
	location string
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the facade. presence may be nil.
func NewService(store Store, tokens TokenValidator, detector CurfewDetector, presence Presence, cooldown time.Duration, gateLocation string, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if gateLocation == "" {
		gateLocation = "Main Gate"
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		detector: detector,
		presence: presence,
		cooldown: cooldown,
		location: gateLocation,
		loc:      loc,
		now:      time.Now,
	}
}

// InferNextDirection returns IN for a student with no events, otherwise the
// opposite of their most recent event. Strict two-state toggle.
func (s *Service) InferNextDirection(ctx context.Context, studentID string) (Direction, error) {
	last, err := s.store.LastEvent(ctx, studentID)
	if err != nil {
		return "", err
	}
	if last == nil || last.Direction == DirectionOut {
		return DirectionIn, nil
	}
	return DirectionOut, nil
}

// Record appends a new event and synchronously runs the reactive curfew
// check against it.
func (s *Service) Record(ctx context.Context, studentID string, direction Direction, location string, remarks, verifiedBy *string) (Event, error) {
	if s.cooldown > 0 {
		recent, err := s.store.RecentEvent(ctx, studentID, s.cooldown)
		if err != nil {
			return Event{}, err
		}
		if recent != nil {
			return Event{}, ErrScanTooSoon
		}
	}
	if location == "" {
		location = s.location
	}
	evt, err := s.store.Insert(ctx, Event{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		Timestamp:  s.now().UTC(),
		Direction:  direction,
		Location:   location,
		Remarks:    remarks,
		VerifiedBy: verifiedBy,
	})
	if err != nil {
		return Event{}, err
	}
	metrics.ScansTotal.WithLabelValues(string(direction)).Inc()

	if err := s.detector.CheckReturn(ctx, evt.StudentID, string(evt.Direction), evt.Timestamp); err != nil {
		return Event{}, err
	}
	if s.presence != nil {
		if err := s.presence.Set(ctx, studentID, string(direction)); err != nil {
			log.Printf("presence cache update failed for %s: %v", studentID, err)
		}
	}
	return evt, nil
}

// ProcessScan validates a presence token and records the resulting event.
// explicit overrides the inferred direction when non-nil.
func (s *Service) ProcessScan(ctx context.Context, tokenValue string, explicit *Direction) (Event, error) {
	studentID, err := s.tokens.Validate(ctx, tokenValue)
	if err != nil {
		// Not-found, expired, and already-used all collapse into the same
		// rejection; storage failures propagate as-is so the caller can
		// retry.
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrConsumed) {
			metrics.RejectedTokensTotal.Inc()
			return Event{}, ErrInvalidToken
		}
		return Event{}, err
	}
	remarks := "QR Code Scan"
	return s.recordScan(ctx, studentID, explicit, &remarks, nil)
}

// ProcessVerifiedScan records a scan for an already-identified student, e.g.
// after the external face matcher returned a match.
func (s *Service) ProcessVerifiedScan(ctx context.Context, studentID string, explicit *Direction, remarks string, verifiedBy *string) (Event, error) {
	return s.recordScan(ctx, studentID, explicit, &remarks, verifiedBy)
}

func (s *Service) recordScan(ctx context.Context, studentID string, explicit *Direction, remarks, verifiedBy *string) (Event, error) {
	direction := Direction("")
	if explicit != nil {
		direction = *explicit
	} else {
		inferred, err := s.InferNextDirection(ctx, studentID)
		if err != nil {
			return Event{}, err
		}
		direction = inferred
	}
	return s.Record(ctx, studentID, direction, "", remarks, verifiedBy)
}

// RunCurfewSweep flags every student still OUT during the night window.
// Idempotent per day; safe to call repeatedly.
func (s *Service) RunCurfewSweep(ctx context.Context) ([]violation.SweepResult, error) {
	results, err := s.detector.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	metrics.CurfewViolationsTotal.Add(float64(len(results)))
	return results, nil
}

// History returns a student's events, most recent first, optionally bounded
// by calendar dates.
func (s *Service) History(ctx context.Context, studentID string, start, end *time.Time) ([]Event, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, ErrInvalidRange
	}
	return s.store.History(ctx, studentID, start, end)
}

// MonthlyStats computes a student's counts and presence percentage for one
// facility-local month.
func (s *Service) MonthlyStats(ctx context.Context, studentID string, year, month int) (Stats, error) {
	if month < 1 || month > 12 {
		return Stats{}, ErrInvalidMonth
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, 0)

	events, err := s.store.EventsBetween(ctx, studentID, from.UTC(), to.UTC())
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{StudentID: studentID, TotalRecords: len(events)}
	inDays := map[string]struct{}{}
	for _, e := range events {
		switch e.Direction {
		case DirectionIn:
			stats.InCount++
			inDays[e.Timestamp.In(s.loc).Format("2006-01-02")] = struct{}{}
		case DirectionOut:
			stats.OutCount++
		}
	}

	last, err := s.store.LastEvent(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}
	if last != nil {
		d := last.Direction
		ts := last.Timestamp
		stats.CurrentStatus = &d
		stats.LastUpdated = &ts
	}

	daysInMonth := to.AddDate(0, 0, -1).Day()
	stats.MonthlyPercentage = math.Round(float64(len(inDays))/float64(daysInMonth)*100*100) / 100
	return stats, nil
}

// DailyRoster returns every event on one facility-local date with student
// identity attached.
func (s *Service) DailyRoster(ctx context.Context, date time.Time) ([]RosterEntry, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	return s.store.Roster(ctx, from.UTC(), from.AddDate(0, 0, 1).UTC())
}
