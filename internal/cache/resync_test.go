package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gitcg/gitcg-server-go/internal/game"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ResyncCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to create miniredis")
	t.Cleanup(mr.Close)

	client, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewResyncCache(client, ttl, zaptest.NewLogger(t)), mr
}

func TestStoreAndLatest(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	n := game.Notification{State: game.ExposedGameState{Phase: "action", RoundNumber: 3, CurrentTurn: 1}}
	require.NoError(t, c.Store(ctx, "m1", 1, n))
	assert.True(t, mr.Exists("match:m1:seat:1"))
	assert.Equal(t, time.Minute, mr.TTL("match:m1:seat:1"))

	got, err := c.Latest(ctx, "m1", 1)
	require.NoError(t, err)
	assert.Equal(t, "action", got.State.Phase)
	assert.Equal(t, 3, got.State.RoundNumber)
	assert.Empty(t, got.Mutations)

	_, err = c.Latest(ctx, "m1", 0)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "m1", 0, game.Notification{}))
	mr.FastForward(2 * time.Minute)

	_, err := c.Latest(ctx, "m1", 0)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestDelete(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "m1", 0, game.Notification{}))
	require.NoError(t, c.Store(ctx, "m1", 1, game.Notification{}))
	require.NoError(t, c.Store(ctx, "m2", 0, game.Notification{}))
	require.NoError(t, c.Delete(ctx, "m1"))

	assert.False(t, mr.Exists("match:m1:seat:0"))
	assert.False(t, mr.Exists("match:m1:seat:1"))
	assert.True(t, mr.Exists("match:m2:seat:0"))
}

func TestObserverCachesEachSeat(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	st := game.NewGameState(game.DefaultRules(), 1)
	c.Observer(ctx, "m3")(game.NotifyBatch{State: st})

	for who := 0; who < 2; who++ {
		got, err := c.Latest(ctx, "m3", who)
		require.NoError(t, err)
		assert.Equal(t, st.Phase.String(), got.State.Phase)
	}
}

func TestUnavailableRedis(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	err := c.Store(context.Background(), "m1", 0, game.Notification{})
	assert.Error(t, err)

	// the observer only logs
	assert.NotPanics(t, func() {
		c.Observer(context.Background(), "m1")(game.NotifyBatch{State: game.NewGameState(game.DefaultRules(), 1)})
	})
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}
