// Package redisstore implements the event log on Redis Streams.
// Each child-day is one stream; entries carry the JSON-encoded event.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/store"
)

const (
	fieldEvent = "event"

	defaultPrefix = "sleepcheck:"
	defaultBlock  = 2 * time.Second
)

// Options configures a Store.
type Options struct {
	// KeyPrefix namespaces stream keys (default "sleepcheck:").
	KeyPrefix string
	// Location buckets events into facility-local days.
	Location *time.Location
	// Retention expires a child-day stream this long after its last append. Zero keeps it.
	Retention time.Duration
	// Block bounds each XREAD wait so cancellation is noticed (default 2s).
	Block time.Duration
}

// Store is a store.Store backed by Redis.
type Store struct {
	client *redis.Client
	opts   Options
	logger *zap.Logger
}

// New wraps an existing client.
func New(client *redis.Client, opts Options, logger *zap.Logger) *Store {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultPrefix
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Block <= 0 {
		opts.Block = defaultBlock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, opts: opts, logger: logger}
}

// StreamKey returns the stream holding childID's events for day.
func (s *Store) StreamKey(childID string, day store.Day) string {
	return fmt.Sprintf("%sevents:%s:%s", s.opts.KeyPrefix, childID, day)
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, event logic.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redisstore: marshal event: %w", err)
	}
	key := s.StreamKey(event.ChildID, store.DayOf(event.Timestamp, s.opts.Location))

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			Values: map[string]interface{}{fieldEvent: string(data)},
		})
		if s.opts.Retention > 0 {
			pipe.Expire(ctx, key, s.opts.Retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: append %s: %w", key, err)
	}
	return nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, childID string, day store.Day) ([]logic.Event, error) {
	events, _, err := s.load(ctx, s.StreamKey(childID, day))
	return events, err
}

func (s *Store) load(ctx context.Context, key string) ([]logic.Event, string, error) {
	msgs, err := s.client.XRange(ctx, key, "-", "+").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("redisstore: load %s: %w", key, err)
	}
	events := make([]logic.Event, 0, len(msgs))
	lastID := "0"
	for _, msg := range msgs {
		lastID = msg.ID
		e, ok := s.decode(key, msg)
		if ok {
			events = append(events, e)
		}
	}
	store.SortEvents(events)
	return events, lastID, nil
}

func (s *Store) decode(key string, msg redis.XMessage) (logic.Event, bool) {
	raw, ok := msg.Values[fieldEvent].(string)
	if !ok {
		s.logger.Warn("stream entry without event field",
			zap.String("stream", key),
			zap.String("entry_id", msg.ID),
		)
		return logic.Event{}, false
	}
	var e logic.Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		s.logger.Warn("undecodable stream entry",
			zap.String("stream", key),
			zap.String("entry_id", msg.ID),
			zap.Error(err),
		)
		return logic.Event{}, false
	}
	return e, true
}

// Subscribe implements store.Store. It reads the stream once, then follows
// new entries with blocking XREAD and re-delivers the full ordered list.
func (s *Store) Subscribe(ctx context.Context, childID string, day store.Day) (<-chan []logic.Event, error) {
	key := s.StreamKey(childID, day)
	events, lastID, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	ch := make(chan []logic.Event, 1)
	store.Offer(ch, snapshot(events))

	go func() {
		defer close(ch)
		for ctx.Err() == nil {
			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Block:   s.opts.Block,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("stream read failed",
					zap.String("stream", key),
					zap.Error(err),
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.opts.Block):
				}
				continue
			}

			changed := false
			for _, st := range streams {
				for _, msg := range st.Messages {
					lastID = msg.ID
					if e, ok := s.decode(key, msg); ok {
						events = append(events, e)
						changed = true
					}
				}
			}
			if changed {
				store.SortEvents(events)
				store.Offer(ch, snapshot(events))
			}
		}
	}()

	return ch, nil
}

func snapshot(events []logic.Event) []logic.Event {
	out := make([]logic.Event, len(events))
	copy(out, events)
	return out
}
