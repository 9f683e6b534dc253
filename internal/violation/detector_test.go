package violation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	violations []Violation
	out        []OutStudent
	insertErr  error
}

func (f *fakeStore) Insert(_ context.Context, v Violation) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, existing := range f.violations {
		if existing.StudentID == v.StudentID && existing.Kind == v.Kind &&
			existing.Date.Equal(v.Date) && !existing.Resolved {
			return ErrDuplicate
		}
	}
	f.violations = append(f.violations, v)
	return nil
}

func (f *fakeStore) HasUnresolvedCurfew(_ context.Context, studentID string, date time.Time) (bool, error) {
	for _, v := range f.violations {
		if v.StudentID == studentID && v.Kind == KindCurfew && v.Date.Equal(date) && !v.Resolved {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) StudentsCurrentlyOut(_ context.Context) ([]OutStudent, error) {
	return f.out, nil
}

func newTestDetector(store Store) *Detector {
	return NewDetector(store, 22, 0, time.UTC)
}

func TestCheckReturnExactlyAtCurfew(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(store)

	at := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	require.NoError(t, d.CheckReturn(context.Background(), "s1", "IN", at))

	require.Len(t, store.violations, 1)
	v := store.violations[0]
	assert.Equal(t, "s1", v.StudentID)
	assert.Equal(t, KindCurfew, v.Kind)
	assert.Equal(t, SeverityHigh, v.Severity)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), v.Date)
	assert.Contains(t, v.Description, "22:00")
}

func TestCheckReturnMinuteBeforeCurfew(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(store)

	at := time.Date(2025, 3, 10, 21, 59, 0, 0, time.UTC)
	require.NoError(t, d.CheckReturn(context.Background(), "s1", "IN", at))
	assert.Empty(t, store.violations)
}

func TestCheckReturnIgnoresOutEvents(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(store)

	at := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	require.NoError(t, d.CheckReturn(context.Background(), "s1", "OUT", at))
	assert.Empty(t, store.violations)
}

func TestCheckReturnDuplicateIsBenign(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(store)
	at := time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC)

	require.NoError(t, d.CheckReturn(context.Background(), "s1", "IN", at))
	require.NoError(t, d.CheckReturn(context.Background(), "s1", "IN", at.Add(time.Hour)))
	assert.Len(t, store.violations, 1)
}

func TestCheckReturnUsesFacilityLocalTime(t *testing.T) {
	store := &fakeStore{}
	loc := time.FixedZone("facility", 5*3600+1800) // UTC+05:30
	d := NewDetector(store, 22, 0, loc)

	// 16:45 UTC is 22:15 facility-local: past curfew.
	at := time.Date(2025, 3, 10, 16, 45, 0, 0, time.UTC)
	require.NoError(t, d.CheckReturn(context.Background(), "s1", "IN", at))
	require.Len(t, store.violations, 1)
	assert.Contains(t, store.violations[0].Description, "22:15")
}

func TestSweepOutsideNightWindow(t *testing.T) {
	store := &fakeStore{out: []OutStudent{{StudentID: "s1", Name: "A B", LastOut: time.Now().Add(-3 * time.Hour)}}}
	d := newTestDetector(store)
	d.now = func() time.Time { return time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC) }

	results, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, store.violations)
}

func TestSweepFlagsStudentsStillOut(t *testing.T) {
	lastOut := time.Date(2025, 3, 10, 22, 5, 0, 0, time.UTC)
	store := &fakeStore{out: []OutStudent{{StudentID: "s2", Name: "Priya Nair", LastOut: lastOut}}}
	d := newTestDetector(store)
	d.now = func() time.Time { return time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC) }

	results, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s2", results[0].StudentID)
	assert.Equal(t, "Priya Nair", results[0].Name)
	assert.Equal(t, lastOut, results[0].LastOut)
	assert.InDelta(t, 0.9, results[0].HoursOut, 0.001)

	require.Len(t, store.violations, 1)
	assert.Contains(t, store.violations[0].Description, "22:05")
	assert.Contains(t, store.violations[0].Description, "22:00")
}

func TestSweepIdempotentSameDay(t *testing.T) {
	store := &fakeStore{out: []OutStudent{{StudentID: "s1", Name: "A B", LastOut: time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)}}}
	d := newTestDetector(store)
	d.now = func() time.Time { return time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC) }

	first, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, store.violations, 1)
}

func TestSweepEarlyMorningWindow(t *testing.T) {
	store := &fakeStore{out: []OutStudent{{StudentID: "s1", Name: "A B", LastOut: time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)}}}
	d := newTestDetector(store)
	// 02:00 next day is inside the overnight window.
	d.now = func() time.Time { return time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC) }

	results, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 5.0, results[0].HoursOut, 0.001)
	// The violation is dated to the sweep's calendar day.
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), store.violations[0].Date)
}

func TestSweepSkipsConcurrentDuplicate(t *testing.T) {
	store := &fakeStore{
		out:       []OutStudent{{StudentID: "s1", Name: "A B", LastOut: time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)}},
		insertErr: ErrDuplicate,
	}
	d := newTestDetector(store)
	d.now = func() time.Time { return time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC) }

	// A concurrent sweep already inserted the row; this run must not fail,
	// and must not claim the student in its results.
	results, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
