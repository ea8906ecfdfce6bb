// Package cache 关注者索引缓存。
//
// 每个被关注对象一条 Redis List：followers:index:<federatedID>，按关注时间倒序存放关注者 id。
// 写路径只做失效（DEL），读路径未命中时由调用方回源后 Store。
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "followers:index:"

// Key 索引 key
func Key(targetID string) string { return keyPrefix + targetID }

// FollowerIndex Redis List 形式的关注者 id 索引
type FollowerIndex struct {
	rdb *redis.Client
	ttl time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewFollowerIndex(rdb *redis.Client, ttl time.Duration) *FollowerIndex {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FollowerIndex{rdb: rdb, ttl: ttl}
}

// Range 读取 [offset, offset+limit) 区间；ok=false 表示索引不存在，需要回源
func (c *FollowerIndex) Range(ctx context.Context, targetID string, offset, limit int) (ids []string, ok bool, err error) {
	key := Key(targetID)
	pipe := c.rdb.Pipeline()
	exists := pipe.Exists(ctx, key)
	lr := pipe.LRange(ctx, key, int64(offset), int64(offset+limit-1))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, false, err
	}
	if exists.Val() == 0 {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return lr.Val(), true, nil
}

// Store 整体替换索引。空列表不写入，避免缓存空结果
func (c *FollowerIndex) Store(ctx context.Context, targetID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	key := Key(targetID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, toArgs(ids)...)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

// Invalidate 删除索引
func (c *FollowerIndex) Invalidate(ctx context.Context, targetIDs ...string) error {
	if len(targetIDs) == 0 {
		return nil
	}
	keys := make([]string, len(targetIDs))
	for i, id := range targetIDs {
		keys[i] = Key(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Stats 命中/未命中累计
func (c *FollowerIndex) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func toArgs(strs []string) []any {
	out := make([]any, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}
