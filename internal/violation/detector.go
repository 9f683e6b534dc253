package violation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Detector applies the curfew policy. All time-of-day comparisons run in the
// facility timezone; stored timestamps stay UTC.
type Detector struct {
	store        Store
	curfewHour   int
	curfewMinute int
	loc          *time.Location
	now          func() time.Time
}

// NewDetector creates a detector for the configured curfew time.
func NewDetector(store Store, curfewHour, curfewMinute int, loc *time.Location) *Detector {
	if loc == nil {
		loc = time.UTC
	}
	return &Detector{
		store:        store,
		curfewHour:   curfewHour,
		curfewMinute: curfewMinute,
		loc:          loc,
		now:          time.Now,
	}
}

// pastCurfew reports whether the local time-of-day is at or after curfew.
// The boundary is inclusive.
func (d *Detector) pastCurfew(local time.Time) bool {
	return local.Hour() > d.curfewHour ||
		(local.Hour() == d.curfewHour && local.Minute() >= d.curfewMinute)
}

// CheckReturn runs after every recorded event. An IN event at or after
// curfew means the student was out past curfew and is only now returning, so
// a High-severity Curfew violation is written, dated to the event's
// facility-local date. OUT events are ignored.
func (d *Detector) CheckReturn(ctx context.Context, studentID, direction string, at time.Time) error {
	if direction != "IN" {
		return nil
	}
	local := at.In(d.loc)
	if !d.pastCurfew(local) {
		return nil
	}
	v := Violation{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Kind:        KindCurfew,
		Date:        dateOf(local),
		Description: fmt.Sprintf("Returned after curfew at %s", local.Format("15:04")),
		Severity:    SeverityHigh,
	}
	if err := d.store.Insert(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// A curfew violation for this student and date already exists
			// (e.g. the nightly sweep flagged them first). One unresolved
			// record per day is the invariant; nothing more to do.
			return nil
		}
		return err
	}
	return nil
}

// Sweep flags every student still OUT during the night window. Outside the
// window (before curfew and after 06:00) it is a no-op. Safe to re-run: the
// per-day duplicate check plus the storage uniqueness constraint make
// repeated invocations idempotent.
func (d *Detector) Sweep(ctx context.Context) ([]SweepResult, error) {
	now := d.now().In(d.loc)
	if now.Hour() < d.curfewHour && now.Hour() >= 6 {
		return []SweepResult{}, nil
	}

	outs, err := d.store.StudentsCurrentlyOut(ctx)
	if err != nil {
		return nil, err
	}

	today := dateOf(now)
	results := []SweepResult{}
	for _, o := range outs {
		exists, err := d.store.HasUnresolvedCurfew(ctx, o.StudentID, today)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		hoursOut := now.Sub(o.LastOut).Hours()
		v := Violation{
			ID:        uuid.NewString(),
			StudentID: o.StudentID,
			Kind:      KindCurfew,
			Date:      today,
			Description: fmt.Sprintf("Student out since %s, hasn't returned by curfew (%02d:%02d)",
				o.LastOut.In(d.loc).Format("15:04"), d.curfewHour, d.curfewMinute),
			Severity: SeverityHigh,
		}
		if err := d.store.Insert(ctx, v); err != nil {
			if errors.Is(err, ErrDuplicate) {
				// Lost a race with a concurrent sweep; the other run owns
				// the record and will have reported this student.
				continue
			}
			return nil, err
		}

		results = append(results, SweepResult{
			StudentID: o.StudentID,
			Name:      o.Name,
			LastOut:   o.LastOut,
			HoursOut:  math.Round(hoursOut*10) / 10,
		})
	}
	return results, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
