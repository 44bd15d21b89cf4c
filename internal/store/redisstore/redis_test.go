package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/store"
)

func setupTestRedis(t *testing.T, opts Options) (*miniredis.Miniredis, *redis.Client, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Block == 0 {
		opts.Block = 50 * time.Millisecond
	}
	return mr, client, New(client, opts, zap.NewNop())
}

func event(id string, kind logic.Kind, ts time.Time) logic.Event {
	return logic.Event{
		ID:         id,
		ChildID:    "child-1",
		SessionID:  "s1",
		Timestamp:  ts,
		Kind:       kind,
		Position:   logic.PositionBack,
		Breathing:  logic.BreathingNormal,
		RecordedBy: logic.Staff{Initials: "AB", ID: "staff-1"},
	}
}

func TestStore_StreamKey(t *testing.T) {
	_, _, s := setupTestRedis(t, Options{KeyPrefix: "daycare:"})
	assert.Equal(t, "daycare:events:child-1:2026-03-02", s.StreamKey("child-1", "2026-03-02"))
}

func TestStore_AppendAndLoad(t *testing.T) {
	_, _, s := setupTestRedis(t, Options{})
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	start := event("e1", logic.KindStart, base)
	check := event("e2", logic.KindCheck, base.Add(15*time.Minute))
	check.IntervalSinceLastMinutes = logic.IntervalMinutes(base, check.Timestamp)
	check.Notes = "sleeping soundly"

	require.NoError(t, s.Append(ctx, check))
	require.NoError(t, s.Append(ctx, start))

	events, err := s.Load(ctx, "child-1", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "e2", events[1].ID)
	require.NotNil(t, events[1].IntervalSinceLastMinutes)
	assert.Equal(t, 15, *events[1].IntervalSinceLastMinutes)
	assert.Equal(t, "sleeping soundly", events[1].Notes)
	assert.True(t, events[1].Timestamp.Equal(check.Timestamp))
	assert.Equal(t, logic.Staff{Initials: "AB", ID: "staff-1"}, events[1].RecordedBy)
}

func TestStore_LoadMissingStream(t *testing.T) {
	_, _, s := setupTestRedis(t, Options{})
	events, err := s.Load(context.Background(), "nobody", "2026-03-02")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_SkipsUndecodableEntries(t *testing.T) {
	_, client, s := setupTestRedis(t, Options{})
	ctx := context.Background()
	key := s.StreamKey("child-1", "2026-03-02")

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]interface{}{"event": "{not json"}}).Err())
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]interface{}{"other": "x"}}).Err())
	require.NoError(t, s.Append(ctx, event("e1", logic.KindStart, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))))

	events, err := s.Load(ctx, "child-1", "2026-03-02")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e1", events[0].ID)
}

func TestStore_Retention(t *testing.T) {
	mr, _, s := setupTestRedis(t, Options{Retention: 72 * time.Hour})
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, event("e1", logic.KindStart, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))))

	assert.Equal(t, 72*time.Hour, mr.TTL(s.StreamKey("child-1", "2026-03-02")))
}

func TestStore_Subscribe(t *testing.T) {
	_, _, s := setupTestRedis(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, event("e1", logic.KindStart, base)))

	ch, err := s.Subscribe(ctx, "child-1", store.Day("2026-03-02"))
	require.NoError(t, err)

	first := <-ch
	require.Len(t, first, 1)
	assert.Equal(t, "e1", first[0].ID)

	require.NoError(t, s.Append(ctx, event("e2", logic.KindCheck, base.Add(15*time.Minute))))

	select {
	case snap := <-ch:
		require.Len(t, snap, 2)
		assert.Equal(t, "e2", snap[1].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live snapshot")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
