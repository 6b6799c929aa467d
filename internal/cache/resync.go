// Package cache keeps the latest notification of every seat in Redis so a
// reconnecting client can redraw the board without waiting for the next
// flush.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

// ErrNotCached is returned when a seat has no cached notification.
var ErrNotCached = errors.New("no cached notification")

// Client is the subset of the go-redis client the cache uses.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewClient creates a go-redis client for a single instance.
func NewClient(address string) (*redis.Client, error) {
	if address == "" {
		return nil, errors.New("redis: address is required")
	}
	return redis.NewClient(&redis.Options{Addr: address}), nil
}

// ResyncCache stores notifications under match:<id>:seat:<who>.
type ResyncCache struct {
	client Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResyncCache creates a cache. Entries expire after ttl.
func NewResyncCache(client Client, ttl time.Duration, logger *zap.Logger) *ResyncCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResyncCache{client: client, ttl: ttl, logger: logger}
}

func seatKey(matchID string, who int) string {
	return fmt.Sprintf("match:%s:seat:%d", matchID, who)
}

// Store replaces the cached notification of a seat.
func (c *ResyncCache) Store(ctx context.Context, matchID string, who int, n game.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := c.client.Set(ctx, seatKey(matchID, who), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache notification for match %s seat %d: %w", matchID, who, err)
	}
	return nil
}

// Latest returns the cached notification of a seat. Mutations are
// dropped: the state alone is enough to resynchronise.
func (c *ResyncCache) Latest(ctx context.Context, matchID string, who int) (*game.Notification, error) {
	data, err := c.client.Get(ctx, seatKey(matchID, who)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache for match %s seat %d: %w", matchID, who, err)
	}
	var n struct {
		State game.ExposedGameState `json:"state"`
	}
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode cached notification: %w", err)
	}
	return &game.Notification{Mutations: []game.ExposedMutation{}, State: n.State}, nil
}

// Delete drops both seats of a match.
func (c *ResyncCache) Delete(ctx context.Context, matchID string) error {
	if err := c.client.Del(ctx, seatKey(matchID, 0), seatKey(matchID, 1)).Err(); err != nil {
		return fmt.Errorf("failed to clear cache for match %s: %w", matchID, err)
	}
	return nil
}

// Observer returns a batch observer that caches what each seat was sent.
// Failures are logged; the match never waits on the cache.
func (c *ResyncCache) Observer(ctx context.Context, matchID string) func(game.NotifyBatch) {
	return func(b game.NotifyBatch) {
		for who := 0; who < 2; who++ {
			n := game.Notification{
				Mutations: b.Exposed[who],
				State:     game.ExposeState(who, b.State),
			}
			if err := c.Store(ctx, matchID, who, n); err != nil {
				c.logger.Warn("failed to cache notification",
					zap.String("match_id", matchID),
					zap.Int("who", who),
					zap.Error(err),
				)
			}
		}
	}
}
