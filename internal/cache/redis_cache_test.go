package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zns-gateway/internal/models"
)

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, 10*time.Second, nil), mr
}

func TestRedisCache_HistoryChanged(t *testing.T) {
	t.Parallel()
	c, mr := newCache(t)

	messageID := "remote-123"
	delivered := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	c.HistoryChanged(context.Background(), &models.History{
		ID:           42,
		CompanyID:    1,
		MessageID:    &messageID,
		State:        models.StateDelivered,
		DeliveryDate: &delivered,
	})

	k := "zns:status:remote-123"
	require.True(t, mr.Exists(k))
	assert.Positive(t, mr.TTL(k))

	raw, err := mr.Get(k)
	require.NoError(t, err)
	var got Status
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.EqualValues(t, 42, got.HistoryID)
	assert.Equal(t, models.StateDelivered, got.State)
	require.NotNil(t, got.DeliveryDate)
	assert.True(t, got.DeliveryDate.Equal(delivered))
}

func TestRedisCache_SkipsRowsWithoutMessageID(t *testing.T) {
	t.Parallel()
	c, mr := newCache(t)

	c.HistoryChanged(context.Background(), &models.History{ID: 1, State: models.StateDraft})

	assert.Empty(t, mr.Keys())
}

func TestRedisCache_LookupStatus(t *testing.T) {
	t.Parallel()
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok, err := c.LookupStatus(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.StoreStatus(ctx, "m-1", Status{HistoryID: 7, State: models.StateRead}))
	st, ok, err := c.LookupStatus(ctx, "m-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 7, st.HistoryID)
	assert.Equal(t, models.StateRead, st.State)
}

func TestRedisCache_UnavailableDoesNotPanic(t *testing.T) {
	t.Parallel()
	c, mr := newCache(t)
	mr.Close()

	messageID := "m-2"
	assert.NotPanics(t, func() {
		c.HistoryChanged(context.Background(), &models.History{ID: 2, MessageID: &messageID, State: models.StateSent})
	})
}
