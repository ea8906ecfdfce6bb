// relbench 关注风暴压测：N 个用户并发关注同一个账号，随后一半取关，
// 最后校验计数与边数一致，并输出延迟分位与索引失效队列情况。
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kmsv-2726/federated-socmed/config"
	"github.com/kmsv-2726/federated-socmed/internal/cache"
	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/internal/service"
	pkgcache "github.com/kmsv-2726/federated-socmed/pkg/cache"
	"github.com/kmsv-2726/federated-socmed/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

// storm 用 conc 个 worker 对 ids 执行 op，返回每次调用耗时与失败次数
func storm(ids []string, conc int, op func(id string) error) ([]time.Duration, int) {
	feed := make(chan string, len(ids))
	for _, id := range ids {
		feed <- id
	}
	close(feed)

	var (
		mu    sync.Mutex
		recs  = make([]time.Duration, 0, len(ids))
		fails int
		wg    sync.WaitGroup
	)
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range feed {
				st := time.Now()
				err := op(id)
				d := time.Since(st)
				mu.Lock()
				recs = append(recs, d)
				if err != nil {
					fails++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return recs, fails
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	n := envInt("N", 10000)
	conc := envInt("CONC", 8)
	page := envInt("PAGE", 50)
	server := cfg.Federation.ServerName

	m := metrics.New(prometheus.NewRegistry())
	followRepo := repository.NewFollowRepository(db)
	userRepo := repository.NewUserRepository(db)

	var (
		index      service.FollowerIndex
		replicator *service.IndexReplicator
	)
	if rdb := must(pkgcache.NewRedis(ctx, cfg.Redis)); rdb != nil {
		index = cache.NewFollowerIndex(rdb, cfg.Redis.IndexTTL)
		replicator = service.NewIndexReplicator(index, 100000, m)
	}
	var stop func(context.Context) error
	if replicator != nil {
		stop = replicator.Start(8)
	}
	relSvc := service.NewRelationshipService(followRepo, userRepo, repository.NewChannelRepository(db), index, replicator, m)

	// 每次运行用新的一批用户，避免和上次的数据冲突
	run := uuid.New().String()[:8]
	celeb := identity.UserID(server, "celeb-"+run).String()
	if err := userRepo.Create(ctx, &model.User{FederatedID: celeb, Server: server}); err != nil {
		panic(err)
	}
	users := make([]model.User, n)
	ids := make([]string, n)
	for i := range users {
		ids[i] = identity.UserID(server, fmt.Sprintf("fan-%s-%d", run, i)).String()
		users[i] = model.User{ID: uuid.New().String(), FederatedID: ids[i], Server: server, Role: model.RoleUser}
	}
	if err := db.CreateInBatches(&users, 1000).Error; err != nil {
		panic(err)
	}

	maxQ := 0
	quitSample := make(chan struct{})
	if replicator != nil {
		go func() {
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if q := replicator.QueueLen(); q > maxQ {
						maxQ = q
					}
				case <-quitSample:
					return
				}
			}
		}()
	}

	t0 := time.Now()
	followRecs, followFails := storm(ids, conc, func(id string) error { return relSvc.Follow(ctx, id, celeb) })
	followDur := time.Since(t0)

	t1 := time.Now()
	unfollowRecs, unfollowFails := storm(ids[:n/2], conc, func(id string) error { return relSvc.Unfollow(ctx, id, celeb) })
	unfollowDur := time.Since(t1)
	close(quitSample)

	q0 := time.Now()
	_, _ = relSvc.ListFollowers(ctx, celeb, 1, page)
	coldDur := time.Since(q0)
	q1 := time.Now()
	_, _ = relSvc.ListFollowers(ctx, celeb, 1, page)
	warmDur := time.Since(q1)

	drainStart := time.Now()
	if stop != nil {
		_ = stop(ctx)
	}
	drainDur := time.Since(drainStart)

	counts := must(relSvc.Counts(ctx, celeb))
	edges := must(followRepo.CountFollowers(ctx, celeb))

	fmt.Printf("N=%d, CONC=%d, PAGE=%d, driver=%s, index=%v\n", n, conc, page, cfg.Database.Driver, index != nil)
	fmt.Printf("Follow   total: %v, per op: %v, p50: %v, p95: %v, p99: %v, failures: %d\n",
		followDur, followDur/time.Duration(n), pct(followRecs, 0.50), pct(followRecs, 0.95), pct(followRecs, 0.99), followFails)
	fmt.Printf("Unfollow total: %v, p50: %v, p95: %v, p99: %v, failures: %d\n",
		unfollowDur, pct(unfollowRecs, 0.50), pct(unfollowRecs, 0.95), pct(unfollowRecs, 0.99), unfollowFails)
	fmt.Printf("ListFollowers(%d) cold: %v, warm: %v\n", page, coldDur, warmDur)
	if replicator != nil {
		fmt.Printf("Index invalidation: maxQueue=%d, drain=%v\n", maxQ, drainDur)
	}
	fmt.Printf("followers_count=%d, edges=%d\n", counts.Followers, edges)
	if counts.Followers != edges {
		fmt.Println("COUNTER MISMATCH")
		os.Exit(1)
	}
}
