package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
)

func seedBenchUsers(b *testing.B, n int) ([]string, FollowRepository) {
	db := setupTestDB(b)
	users := make([]model.User, n)
	ids := make([]string, n)
	for i := range users {
		ids[i] = fmt.Sprintf("srv1/user/u%04d", i)
		users[i] = model.User{ID: fmt.Sprintf("row-%04d", i), FederatedID: ids[i], Server: "srv1", Role: model.RoleUser}
	}
	if err := db.CreateInBatches(&users, 500).Error; err != nil {
		b.Fatalf("seed users: %v", err)
	}
	return ids, NewFollowRepository(db)
}

// 关注边 + 两侧计数在同一事务里写入
func BenchmarkFollowCreate(b *testing.B) {
	ids, repo := seedBenchUsers(b, 1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := ids[rand.IntN(len(ids))]
		to := ids[rand.IntN(len(ids))]
		if from == to {
			continue
		}
		target, _ := identity.Parse(to)
		_ = repo.Create(ctx, from, target)
	}
}

func BenchmarkListFollowersAndFollowing(b *testing.B) {
	// u0000 有 N 个粉丝，同时关注这 N 个用户
	const n = 2000
	ids, repo := seedBenchUsers(b, n+1)
	ctx := context.Background()
	celeb, _ := identity.Parse(ids[0])
	for _, id := range ids[1:] {
		other, _ := identity.Parse(id)
		if err := repo.Create(ctx, id, celeb); err != nil {
			b.Fatal(err)
		}
		if err := repo.Create(ctx, ids[0], other); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.Run("ListFollowerIDs", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.ListFollowerIDs(ctx, ids[0], 0, 50)
		}
	})
	b.Run("ListFollowingUsers", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.ListFollowingUsers(ctx, ids[0], 0, 50)
		}
	})
	b.Run("RemoteFollowerServers", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = repo.RemoteFollowerServers(ctx, ids[0], "srv1")
		}
	})
}
