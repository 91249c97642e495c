package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"pulsegate/internal/governance/models"
	"pulsegate/pkg/platform/sentinel"
)

const (
	latestKeyPrefix = "pulsegate:snapshot:"
	channelPrefix   = "pulsegate:snapshots:"

	defaultTTL = 12 * time.Hour
	// maxWatchRetries bounds optimistic retries when two writers race on
	// the same session key.
	maxWatchRetries = 5
)

// RedisStore keeps the latest snapshot under a per-session key and fans
// every saved snapshot out on a per-session channel, so frontends on other
// devices render the same lock screen.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets how long an idle session's snapshot survives.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedis constructs a Redis-backed snapshot store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func latestKey(sessionID string) string {
	return latestKeyPrefix + sessionID
}

// Channel is the pub/sub channel snapshots for sessionID are published on.
func Channel(sessionID string) string {
	return channelPrefix + sessionID
}

// Save replaces the latest snapshot under WATCH so a slower writer holding
// an older sequence never overwrites a newer one.
func (s *RedisStore) Save(ctx context.Context, sessionID string, snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := latestKey(sessionID)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var held struct {
				Seq uint64 `json:"seq"`
			}
			if err := json.Unmarshal(cur, &held); err == nil && held.Seq > snap.Seq {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}
	for range maxWatchRetries {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("save snapshot %s: %w", sessionID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Latest(ctx context.Context, sessionID string) (models.Snapshot, error) {
	raw, err := s.client.Get(ctx, latestKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Snapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, latestKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Publish sends snap to the session channel.
func (s *RedisStore) Publish(ctx context.Context, sessionID string, snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Publish(ctx, Channel(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Subscribe streams snapshots published for sessionID until ctx ends.
// Undecodable messages are skipped. The returned channel is closed when the
// subscription ends.
func (s *RedisStore) Subscribe(ctx context.Context, sessionID string) (<-chan models.Snapshot, error) {
	sub := s.client.Subscribe(ctx, Channel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe snapshots: %w", err)
	}
	out := make(chan models.Snapshot)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap models.Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
