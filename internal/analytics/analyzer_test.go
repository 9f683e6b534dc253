package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntrikshVats/HostelManagement/internal/violation"
)

type fakeStore struct {
	out        []OutRecord
	inactive   []StudentRef
	absentees  []Absentee
	lateOut    []LateOut
	gotCutoff  time.Time
	gotLimit   int
	gotCurfewH int
}

func (f *fakeStore) LongOutStudents(_ context.Context, outSince time.Time) ([]OutRecord, error) {
	f.gotCutoff = outSince
	// Mimic the repo predicate so tests can exercise the 24h boundary.
	var res []OutRecord
	for _, o := range f.out {
		if o.LastOut.Before(outSince) {
			res = append(res, o)
		}
	}
	return res, nil
}

func (f *fakeStore) InactiveStudents(_ context.Context, _ time.Time, limit int) ([]StudentRef, error) {
	f.gotLimit = limit
	if len(f.inactive) > limit {
		return f.inactive[:limit], nil
	}
	return f.inactive, nil
}

func (f *fakeStore) FrequentAbsentees(_ context.Context, _ time.Time, _ int) ([]Absentee, error) {
	return f.absentees, nil
}

func (f *fakeStore) LateOutOffenders(_ context.Context, _ time.Time, curfewHour, _ int) ([]LateOut, error) {
	f.gotCurfewH = curfewHour
	return f.lateOut, nil
}

func TestDetectAnomalies24HourBoundary(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{out: []OutRecord{
		{StudentID: "s1", Name: "Out 25h", LastOut: now.Add(-25 * time.Hour)},
		{StudentID: "s2", Name: "Out 23h", LastOut: now.Add(-23 * time.Hour)},
	}}
	a := NewAnalyzer(store, 22, time.UTC)
	a.now = func() time.Time { return now }

	anomalies, err := a.DetectAnomalies(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "s1", anomalies[0].StudentID)
	assert.Equal(t, KindExtendedAbsence, anomalies[0].Kind)
	assert.Equal(t, violation.SeverityHigh, anomalies[0].Severity)
	assert.Equal(t, now, anomalies[0].DetectedAt)
	assert.Contains(t, anomalies[0].Description, "2025-03-10 11:00")
}

func TestDetectAnomaliesCombinesCategories(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		out:      []OutRecord{{StudentID: "s1", Name: "A", LastOut: now.Add(-30 * time.Hour)}},
		inactive: []StudentRef{{StudentID: "s1", Name: "A"}, {StudentID: "s3", Name: "C"}},
	}
	a := NewAnalyzer(store, 22, time.UTC)
	a.now = func() time.Time { return now }

	anomalies, err := a.DetectAnomalies(context.Background())
	require.NoError(t, err)
	// s1 appears in both categories; no cross-category dedup.
	require.Len(t, anomalies, 3)
	assert.Equal(t, KindExtendedAbsence, anomalies[0].Kind)
	assert.Equal(t, KindNoRecentActivity, anomalies[1].Kind)
	assert.Equal(t, violation.SeverityMedium, anomalies[1].Severity)
}

func TestDetectAnomaliesCapsInactiveScan(t *testing.T) {
	var inactive []StudentRef
	for i := 0; i < 25; i++ {
		inactive = append(inactive, StudentRef{StudentID: "s", Name: "X"})
	}
	store := &fakeStore{inactive: inactive}
	a := NewAnalyzer(store, 22, time.UTC)

	anomalies, err := a.DetectAnomalies(context.Background())
	require.NoError(t, err)
	assert.Len(t, anomalies, inactiveLimit)
	assert.Equal(t, inactiveLimit, store.gotLimit)
}

func TestLateOutOffendersPassesCurfewHour(t *testing.T) {
	store := &fakeStore{lateOut: []LateOut{{StudentID: "s1", Name: "A", LateCount: 4}}}
	a := NewAnalyzer(store, 23, time.UTC)

	res, err := a.LateOutOffenders(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 23, store.gotCurfewH)
}
