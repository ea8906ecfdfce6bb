package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/internal/cache"
	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
)

func TestFollowScenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.local(t, "1")
	b := e.local(t, "2")
	require.Equal(t, "srv1/user/1", a)

	require.NoError(t, e.relations.Follow(ctx, a, b))
	assert.EqualValues(t, 1, e.counts(t, b).Followers)
	assert.EqualValues(t, 1, e.counts(t, a).Following)
	ok, err := e.relations.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, e.relations.Follow(ctx, a, b), ErrAlreadyFollowing)
	assert.EqualValues(t, 1, e.counts(t, b).Followers)
	assert.EqualValues(t, 1, e.counts(t, a).Following)

	require.NoError(t, e.relations.Unfollow(ctx, a, b))
	assert.Equal(t, FollowCounts{}, e.counts(t, b))
	assert.Equal(t, FollowCounts{}, e.counts(t, a))

	assert.ErrorIs(t, e.relations.Unfollow(ctx, a, b), ErrNotFollowing)
	ok, err = e.relations.IsFollowing(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelfFollowAlwaysRejected(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.local(t, "1")

	assert.ErrorIs(t, e.relations.Follow(ctx, a, a), ErrSelfFollow)
	assert.ErrorIs(t, e.relations.Unfollow(ctx, a, a), ErrSelfFollow)
	_, err := e.relations.IsFollowing(ctx, a, a)
	assert.ErrorIs(t, err, ErrSelfFollow)
	assert.Equal(t, FollowCounts{}, e.counts(t, a))
}

func TestFollowValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.local(t, "1")

	assert.ErrorIs(t, e.relations.Follow(ctx, a, "not-an-id"), identity.ErrMalformedIdentifier)
	assert.ErrorIs(t, e.relations.Follow(ctx, "srv1/channel/go", a), identity.ErrMalformedIdentifier)
	assert.ErrorIs(t, e.relations.Follow(ctx, a, a+"/post/1"), ErrInvalidTarget)
	assert.ErrorIs(t, e.relations.Follow(ctx, a, "srv1/user/ghost"), ErrNotFound)
	assert.Equal(t, FollowCounts{}, e.counts(t, a))
}

func TestFollowListings(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	root := e.admin(t, "root")
	a := e.local(t, "a")
	b := e.local(t, "b")
	r := e.remote(t, "srv2/user/r")
	ch := e.channel(t, root, "golang", model.VisibilityPublic)

	require.NoError(t, e.relations.Follow(ctx, b, a))
	require.NoError(t, e.relations.Follow(ctx, r, a))
	require.NoError(t, e.relations.Follow(ctx, a, b))
	require.NoError(t, e.relations.Follow(ctx, a, ch.FederatedID))

	followers, err := e.relations.ListFollowers(ctx, a, 1, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(followers))
	for _, u := range followers {
		ids = append(ids, u.FederatedID)
	}
	assert.ElementsMatch(t, []string{b, r}, ids)

	following, err := e.relations.ListFollowing(ctx, a, 1, 10)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b, following[0].FederatedID)

	chans, err := e.relations.ListFollowedChannels(ctx, a, 1, 10)
	require.NoError(t, err)
	require.Len(t, chans, 1)
	assert.Equal(t, "golang", chans[0].Name)

	assert.Equal(t, FollowCounts{Followers: 2, Following: 2}, e.counts(t, a))
	assert.Equal(t, FollowCounts{Followers: 1}, e.counts(t, ch.FederatedID))
}

// 随机并发的关注/取关序列结束后，计数等于边数且不为负
func TestConcurrentFollowUnfollowKeepsCountersExact(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	const n = 12
	users := make([]string, n)
	for i := range users {
		users[i] = e.local(t, fmt.Sprintf("u%d", i))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 60; i++ {
				a, b := users[rng.Intn(n)], users[rng.Intn(n)]
				var err error
				if rng.Intn(2) == 0 {
					err = e.relations.Follow(ctx, a, b)
				} else {
					err = e.relations.Unfollow(ctx, a, b)
				}
				if err != nil {
					assert.Contains(t, []error{ErrSelfFollow, ErrAlreadyFollowing, ErrNotFollowing}, err)
				}
			}
		}(time.Now().UnixNano() + int64(g))
	}
	wg.Wait()

	for _, u := range users {
		c := e.counts(t, u)
		assert.GreaterOrEqual(t, c.Followers, int64(0))
		assert.GreaterOrEqual(t, c.Following, int64(0))
		followers, err := e.follows.CountFollowers(ctx, u)
		require.NoError(t, err)
		following, err := e.follows.CountFollowing(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, followers, c.Followers, "followers of %s", u)
		assert.Equal(t, following, c.Following, "following of %s", u)
	}
}

func TestListFollowersReadsThroughIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idx := cache.NewFollowerIndex(rdb, time.Minute)

	e := newTestEnvWith(t, idx, nil)
	ctx := context.Background()
	star := e.local(t, "star")
	f1 := e.local(t, "f1")
	f2 := e.local(t, "f2")
	require.NoError(t, e.relations.Follow(ctx, f1, star))

	got, err := e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, mr.Exists(cache.Key(star)))

	// 关注会同步失效索引
	require.NoError(t, e.relations.Follow(ctx, f2, star))
	assert.False(t, mr.Exists(cache.Key(star)))

	got, err = e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// 第二页越界
	got, err = e.relations.ListFollowers(ctx, star, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	hits, misses := idx.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 2, misses)
}

// 挂上 replicator 后，关注返回时索引也已失效
func TestListFollowersFreshAfterFollowWithReplicator(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idx := cache.NewFollowerIndex(rdb, time.Minute)
	rep := NewIndexReplicator(idx, 16, nil)
	stop := rep.Start(2)
	t.Cleanup(func() { _ = stop(context.Background()) })

	e := newTestEnvWith(t, idx, nil)
	e.relations = NewRelationshipService(e.follows, e.users, e.channels, idx, rep, nil)
	ctx := context.Background()
	star := e.local(t, "star")
	f1 := e.local(t, "f1")
	f2 := e.local(t, "f2")
	require.NoError(t, e.relations.Follow(ctx, f1, star))
	got, err := e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, e.relations.Follow(ctx, f2, star))
	got, err = e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.EqualValues(t, 2, e.counts(t, star).Followers)

	require.NoError(t, e.relations.Unfollow(ctx, f1, star))
	got, err = e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f2, got[0].FederatedID)
}

// flakyIndex 前 n 次 Invalidate 失败
type flakyIndex struct {
	FollowerIndex
	mu    sync.Mutex
	fails int
}

func (f *flakyIndex) Invalidate(ctx context.Context, ids ...string) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return fmt.Errorf("connection reset")
	}
	f.mu.Unlock()
	return f.FollowerIndex.Invalidate(ctx, ids...)
}

func TestFailedInvalidateRetriedByReplicator(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idx := &flakyIndex{FollowerIndex: cache.NewFollowerIndex(rdb, time.Minute)}
	rep := NewIndexReplicator(idx, 16, nil)
	stop := rep.Start(1)
	t.Cleanup(func() { _ = stop(context.Background()) })

	e := newTestEnvWith(t, idx, nil)
	e.relations = NewRelationshipService(e.follows, e.users, e.channels, idx, rep, nil)
	ctx := context.Background()
	star := e.local(t, "star")
	f0 := e.local(t, "f0")
	f1 := e.local(t, "f1")
	require.NoError(t, e.relations.Follow(ctx, f0, star))
	_, err := e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.Key(star)))

	idx.mu.Lock()
	idx.fails = 1
	idx.mu.Unlock()
	require.NoError(t, e.relations.Follow(ctx, f1, star))
	assert.Eventually(t, func() bool { return !mr.Exists(cache.Key(star)) }, time.Second, 5*time.Millisecond)
}

func TestListFollowersFallsBackWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	e := newTestEnvWith(t, cache.NewFollowerIndex(rdb, time.Minute), nil)
	ctx := context.Background()
	star := e.local(t, "star")
	f1 := e.local(t, "f1")
	require.NoError(t, e.relations.Follow(ctx, f1, star))

	mr.Close()
	got, err := e.relations.ListFollowers(ctx, star, 1, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
