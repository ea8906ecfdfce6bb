package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/internal/cache"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
)

func TestIndexReplicatorInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idx := cache.NewFollowerIndex(rdb, time.Minute)
	ctx := context.Background()
	require.NoError(t, idx.Store(ctx, "srv1/user/1", []string{"srv1/user/2"}))

	r := NewIndexReplicator(idx, 16, nil)
	stop := r.Start(2)
	r.Enqueue("srv1/user/1")

	assert.Eventually(t, func() bool { return !mr.Exists(cache.Key("srv1/user/1")) }, time.Second, 5*time.Millisecond)
	assert.NoError(t, stop(ctx))
}

func TestIndexReplicatorDropsWhenFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewIndexReplicator(nil, 1, m)
	r.Enqueue("a")
	r.Enqueue("b")
	assert.Equal(t, 1, r.QueueLen())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplicatorDropped))
}

func TestIndexReplicatorDrainsOnStop(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idx := cache.NewFollowerIndex(rdb, time.Minute)
	ctx := context.Background()

	r := NewIndexReplicator(idx, 16, nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, idx.Store(ctx, id, []string{"x"}))
		r.Enqueue(id)
	}
	// 停止时排空剩余队列
	stop := r.Start(1)
	require.NoError(t, stop(ctx))
	assert.Zero(t, r.QueueLen())
	for _, id := range []string{"a", "b", "c"} {
		assert.False(t, mr.Exists(cache.Key(id)))
	}
}
