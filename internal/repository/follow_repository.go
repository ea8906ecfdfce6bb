package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
)

var (
	ErrEdgeExists   = errors.New("follow edge already exists")
	ErrEdgeNotFound = errors.New("follow edge not found")
)

// FollowRepository 关注边 + 双向计数。
// 边的增删与两侧计数在同一个事务里完成，计数用 SQL 内自增，避免丢失更新。
type FollowRepository interface {
	Create(ctx context.Context, followerID string, target identity.ID) error
	Delete(ctx context.Context, followerID string, target identity.ID) error
	Exists(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowerIDs(ctx context.Context, followingID string, offset, limit int) ([]string, error)
	ListFollowingUsers(ctx context.Context, followerID string, offset, limit int) ([]*model.User, error)
	ListFollowedChannels(ctx context.Context, followerID string, offset, limit int) ([]*model.Channel, error)
	RemoteFollowerServers(ctx context.Context, followingID, originServer string) ([]string, error)
	CountFollowers(ctx context.Context, followingID string) (int64, error)
	CountFollowing(ctx context.Context, followerID string) (int64, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

// counterRef 指向某一行上的某个计数列
type counterRef struct {
	table  string
	column string
	id     string
}

func targetCounter(target identity.ID) (counterRef, error) {
	switch target.Kind {
	case identity.KindUser:
		return counterRef{table: "users", column: "followers_count", id: target.String()}, nil
	case identity.KindChannel:
		return counterRef{table: "channels", column: "followers_count", id: target.String()}, nil
	default:
		return counterRef{}, fmt.Errorf("%s identifiers cannot be followed", target.Kind)
	}
}

func (r *followRepository) Create(ctx context.Context, followerID string, target identity.ID) error {
	tc, err := targetCounter(target)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := &model.Follow{ID: uuid.New().String(), FollowerID: followerID, FollowingID: target.String()}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(f)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrEdgeExists
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEdgeExists
		}
		return applyCounters(tx, +1,
			counterRef{table: "users", column: "following_count", id: followerID}, tc)
	})
}

func (r *followRepository) Delete(ctx context.Context, followerID string, target identity.ID) error {
	tc, err := targetCounter(target)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, target.String()).
			Delete(&model.Follow{})
		if res.Error != nil {
			return res.Error
		}
		// 并发的第二次取关在这里拿到 0 行，不会把计数减成负数
		if res.RowsAffected == 0 {
			return ErrEdgeNotFound
		}
		return applyCounters(tx, -1,
			counterRef{table: "users", column: "following_count", id: followerID}, tc)
	})
}

// applyCounters 按 (table, id) 排序后逐行更新，两个方向相反的并发关注不会互相死锁。
// 任一行不存在都会让整个事务回滚。
func applyCounters(tx *gorm.DB, delta int, refs ...counterRef) error {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].table != refs[j].table {
			return refs[i].table < refs[j].table
		}
		return refs[i].id < refs[j].id
	})
	for _, ref := range refs {
		var expr clause.Expr
		if delta > 0 {
			expr = gorm.Expr(ref.column + " + 1")
		} else {
			expr = gorm.Expr("CASE WHEN " + ref.column + " > 0 THEN " + ref.column + " - 1 ELSE 0 END")
		}
		res := tx.Table(ref.table).Where("federated_id = ?", ref.id).UpdateColumn(ref.column, expr)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s %s", ErrNotFound, ref.table, ref.id)
		}
	}
	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *followRepository) ListFollowerIDs(ctx context.Context, followingID string, offset, limit int) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("following_id = ?", followingID).
		Order("created_at DESC, id")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Pluck("follower_id", &ids).Error
	return ids, err
}

func (r *followRepository) ListFollowingUsers(ctx context.Context, followerID string, offset, limit int) ([]*model.User, error) {
	var res []*model.User
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Joins("JOIN follows ON follows.following_id = users.federated_id").
		Where("follows.follower_id = ?", followerID).
		Order("follows.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *followRepository) ListFollowedChannels(ctx context.Context, followerID string, offset, limit int) ([]*model.Channel, error) {
	var res []*model.Channel
	err := r.db.WithContext(ctx).
		Model(&model.Channel{}).
		Joins("JOIN follows ON follows.following_id = channels.federated_id").
		Where("follows.follower_id = ?", followerID).
		Order("channels.name").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

// RemoteFollowerServers 返回关注者中来自 originServer 以外节点的去重列表
func (r *followRepository) RemoteFollowerServers(ctx context.Context, followingID, originServer string) ([]string, error) {
	var servers []string
	err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Distinct("users.server").
		Joins("JOIN users ON users.federated_id = follows.follower_id").
		Where("follows.following_id = ? AND users.server <> ?", followingID, originServer).
		Order("users.server").
		Pluck("users.server", &servers).Error
	return servers, err
}

func (r *followRepository) CountFollowers(ctx context.Context, followingID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Follow{}).Where("following_id = ?", followingID).Count(&cnt).Error
	return cnt, err
}

func (r *followRepository) CountFollowing(ctx context.Context, followerID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Follow{}).Where("follower_id = ?", followerID).Count(&cnt).Error
	return cnt, err
}
