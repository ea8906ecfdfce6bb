package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

// FollowerIndex 关注者 id 索引缓存（internal/cache.FollowerIndex）
type FollowerIndex interface {
	Range(ctx context.Context, targetID string, offset, limit int) (ids []string, ok bool, err error)
	Store(ctx context.Context, targetID string, ids []string) error
	Invalidate(ctx context.Context, targetIDs ...string) error
}

// FollowCounts 关注计数
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}

// RelationshipService 关系链服务：用户关注用户、用户关注频道
type RelationshipService interface {
	Follow(ctx context.Context, followerID, targetID string) error
	Unfollow(ctx context.Context, followerID, targetID string) error
	IsFollowing(ctx context.Context, followerID, targetID string) (bool, error)
	ListFollowers(ctx context.Context, targetID string, page, pageSize int) ([]*model.User, error)
	ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]*model.User, error)
	ListFollowedChannels(ctx context.Context, userID string, page, pageSize int) ([]*model.Channel, error)
	Counts(ctx context.Context, federatedID string) (FollowCounts, error)
}

type relationshipService struct {
	followRepo  repository.FollowRepository
	userRepo    repository.UserRepository
	channelRepo repository.ChannelRepository
	index       FollowerIndex
	replicator  *IndexReplicator
	metrics     *metrics.Metrics
}

// NewRelationshipService index / replicator / m 均可为 nil
func NewRelationshipService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	channelRepo repository.ChannelRepository,
	index FollowerIndex,
	replicator *IndexReplicator,
	m *metrics.Metrics,
) RelationshipService {
	return &relationshipService{
		followRepo:  followRepo,
		userRepo:    userRepo,
		channelRepo: channelRepo,
		index:       index,
		replicator:  replicator,
		metrics:     m,
	}
}

// parsePair 校验 follower 为用户、target 为用户或频道
func parsePair(followerID, targetID string) (identity.ID, error) {
	if followerID == targetID {
		return identity.ID{}, ErrSelfFollow
	}
	if _, err := identity.ParseKind(followerID, identity.KindUser); err != nil {
		return identity.ID{}, err
	}
	target, err := identity.Parse(targetID)
	if err != nil {
		return identity.ID{}, err
	}
	if target.Kind != identity.KindUser && target.Kind != identity.KindChannel {
		return identity.ID{}, ErrInvalidTarget
	}
	return target, nil
}

func (s *relationshipService) Follow(ctx context.Context, followerID, targetID string) error {
	target, err := parsePair(followerID, targetID)
	if err != nil {
		return err
	}
	err = translate(s.followRepo.Create(ctx, followerID, target))
	s.metrics.ObserveFollow("follow", err)
	if err != nil {
		return err
	}
	s.invalidate(ctx, targetID)
	return nil
}

func (s *relationshipService) Unfollow(ctx context.Context, followerID, targetID string) error {
	target, err := parsePair(followerID, targetID)
	if err != nil {
		return err
	}
	err = translate(s.followRepo.Delete(ctx, followerID, target))
	s.metrics.ObserveFollow("unfollow", err)
	if err != nil {
		return err
	}
	s.invalidate(ctx, targetID)
	return nil
}

// invalidate 同步删除索引，返回前的读取一定回源；删除失败才交给 replicator 重试
func (s *relationshipService) invalidate(ctx context.Context, targetID string) {
	if s.index == nil {
		return
	}
	err := s.index.Invalidate(ctx, targetID)
	if err == nil {
		return
	}
	logger.Warn("follower index invalidate failed", zap.String("target", targetID), zap.Error(err))
	if s.replicator != nil {
		s.replicator.Enqueue(targetID)
	}
}

func (s *relationshipService) IsFollowing(ctx context.Context, followerID, targetID string) (bool, error) {
	if _, err := parsePair(followerID, targetID); err != nil {
		return false, err
	}
	return s.followRepo.Exists(ctx, followerID, targetID)
}

// ListFollowers 先读 Redis 索引，未命中时回源并整体回填
func (s *relationshipService) ListFollowers(ctx context.Context, targetID string, page, pageSize int) ([]*model.User, error) {
	if _, err := identity.Parse(targetID); err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)

	if s.index == nil {
		ids, err := s.followRepo.ListFollowerIDs(ctx, targetID, offset, limit)
		if err != nil {
			return nil, err
		}
		return s.userRepo.FindByFederatedIDs(ctx, ids)
	}

	ids, ok, err := s.index.Range(ctx, targetID, offset, limit)
	if err != nil {
		// 缓存故障降级为直接查库
		logger.Warn("follower index read failed", zap.String("target", targetID), zap.Error(err))
	} else {
		s.metrics.ObserveCache(ok)
		if ok {
			return s.userRepo.FindByFederatedIDs(ctx, ids)
		}
	}

	all, err := s.followRepo.ListFollowerIDs(ctx, targetID, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := s.index.Store(ctx, targetID, all); err != nil {
		logger.Warn("follower index store failed", zap.String("target", targetID), zap.Error(err))
	}
	if offset >= len(all) {
		return []*model.User{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return s.userRepo.FindByFederatedIDs(ctx, all[offset:end])
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]*model.User, error) {
	if _, err := identity.ParseKind(userID, identity.KindUser); err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)
	return s.followRepo.ListFollowingUsers(ctx, userID, offset, limit)
}

func (s *relationshipService) ListFollowedChannels(ctx context.Context, userID string, page, pageSize int) ([]*model.Channel, error) {
	if _, err := identity.ParseKind(userID, identity.KindUser); err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)
	return s.followRepo.ListFollowedChannels(ctx, userID, offset, limit)
}

// Counts 读取反规范化计数；频道只有 followers
func (s *relationshipService) Counts(ctx context.Context, federatedID string) (FollowCounts, error) {
	id, err := identity.Parse(federatedID)
	if err != nil {
		return FollowCounts{}, err
	}
	switch id.Kind {
	case identity.KindUser:
		u, err := s.userRepo.GetByFederatedID(ctx, federatedID)
		if err != nil {
			return FollowCounts{}, translate(err)
		}
		return FollowCounts{Followers: u.FollowersCount, Following: u.FollowingCount}, nil
	case identity.KindChannel:
		ch, err := s.channelRepo.GetByName(ctx, id.LocalPart)
		if err != nil {
			return FollowCounts{}, translate(err)
		}
		return FollowCounts{Followers: ch.FollowersCount}, nil
	}
	return FollowCounts{}, ErrInvalidTarget
}
