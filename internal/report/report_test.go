package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/store"
)

func at(day, hh, mm int) time.Time {
	return time.Date(2026, 3, day, hh, mm, 0, 0, time.UTC)
}

func ev(id, session string, kind logic.Kind, ts time.Time) logic.Event {
	e := logic.Event{
		ID:         id,
		ChildID:    "child-1",
		SessionID:  session,
		Timestamp:  ts,
		Kind:       kind,
		Position:   logic.PositionBack,
		Breathing:  logic.BreathingNormal,
		RecordedBy: logic.Staff{Initials: "AB", ID: "staff-1"},
	}
	if kind == logic.KindStop {
		e.Mood = logic.MoodNeutral
	}
	return e
}

func seed(t *testing.T, events ...logic.Event) *store.Memory {
	t.Helper()
	mem := store.NewMemory(time.UTC)
	for _, e := range events {
		require.NoError(t, mem.Append(context.Background(), e))
	}
	return mem
}

func TestDayPastExcludesLiveComponent(t *testing.T) {
	mem := seed(t,
		ev("e1", "s1", logic.KindStart, at(2, 13, 0)),
		ev("e2", "s1", logic.KindCheck, at(2, 13, 15)),
		ev("e3", "s1", logic.KindStop, at(2, 13, 40)),
		ev("e4", "s2", logic.KindStart, at(2, 16, 0)),
	)

	sum, err := Day(context.Background(), mem, "child-1", "2026-03-02", at(4, 9, 0), time.UTC)
	require.NoError(t, err)

	assert.False(t, sum.Live)
	assert.Equal(t, 40, sum.TotalSleepMinutes)
	require.Len(t, sum.Sessions, 2)
	assert.Equal(t, 40, sum.Sessions[0].DurationMinutes)
	assert.Equal(t, 1, sum.Sessions[0].Checks)
	assert.True(t, sum.Sessions[1].Active)
	assert.Equal(t, 0, sum.Sessions[1].DurationMinutes)
	assert.Nil(t, sum.Sessions[1].EndTime)
}

func TestDayTodayIncludesOpenSession(t *testing.T) {
	mem := seed(t,
		ev("e1", "s1", logic.KindStart, at(2, 13, 0)),
		ev("e2", "s1", logic.KindStop, at(2, 13, 30)),
		ev("e3", "s2", logic.KindStart, at(2, 14, 0)),
	)

	sum, err := Day(context.Background(), mem, "child-1", "2026-03-02", at(2, 14, 10), time.UTC)
	require.NoError(t, err)

	assert.True(t, sum.Live)
	assert.Equal(t, 40, sum.TotalSleepMinutes)
	assert.Equal(t, 10, sum.Sessions[1].DurationMinutes)
}

func TestIntervalStats(t *testing.T) {
	events := []logic.Event{
		ev("e1", "s1", logic.KindStart, at(2, 13, 0)),
		ev("e2", "s1", logic.KindCheck, at(2, 13, 14)),
		ev("e3", "s1", logic.KindCheck, at(2, 13, 31)),
		ev("e4", "s1", logic.KindStop, at(2, 13, 40)),
		ev("e5", "s2", logic.KindStart, at(2, 15, 0)),
		ev("e6", "s2", logic.KindStop, at(2, 15, 15)),
	}
	sum := Build("child-1", "2026-03-02", events, at(3, 0, 0), time.UTC)

	assert.Equal(t, IntervalStats{Count: 3, MaxMinutes: 17, Overdue: 1}, sum.Sessions[0].Intervals)
	assert.Equal(t, IntervalStats{Count: 1, MaxMinutes: 15, Overdue: 0}, sum.Sessions[1].Intervals,
		"exactly fifteen minutes is on time")
	assert.Equal(t, IntervalStats{Count: 4, MaxMinutes: 17, Overdue: 1}, sum.Intervals)
	assert.Equal(t, 55, sum.TotalSleepMinutes)
}

func TestAbandonedAndAnomalies(t *testing.T) {
	events := []logic.Event{
		ev("orphan", "", logic.KindCheck, at(2, 8, 0)),
		ev("e1", "s1", logic.KindStart, at(2, 9, 0)),
		ev("e2", "s2", logic.KindStart, at(2, 9, 5)),
		ev("e3", "s2", logic.KindStop, at(2, 9, 35)),
	}
	sum := Build("child-1", "2026-03-02", events, at(3, 0, 0), time.UTC)

	require.Len(t, sum.Abandoned, 1)
	assert.Equal(t, "s1", sum.Abandoned[0].SessionID)
	assert.Equal(t, 30, sum.TotalSleepMinutes, "abandoned run excluded")
	assert.Equal(t, []Anomaly{
		{Kind: logic.AnomalyOrphanCheck, EventID: "orphan"},
		{Kind: logic.AnomalyAbandonedSession, EventID: "e1", SessionID: "s1"},
	}, sum.Anomalies)
}

type failingStore struct{ store.Store }

func (failingStore) Load(context.Context, string, store.Day) ([]logic.Event, error) {
	return nil, errors.New("db down")
}

func TestDayLoadError(t *testing.T) {
	_, err := Day(context.Background(), failingStore{}, "child-1", "2026-03-02", at(2, 9, 0), time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestEmptyDay(t *testing.T) {
	sum := Build("child-1", "2026-03-02", nil, at(2, 9, 0), time.UTC)
	assert.NotNil(t, sum.Sessions)
	assert.Empty(t, sum.Sessions)
	assert.Equal(t, 0, sum.TotalSleepMinutes)
}
