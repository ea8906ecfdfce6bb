package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

const maxMintRetries = 3

// CreatePostInput 发帖参数；Kind 为空时按 ChannelName 是否为空推断
type CreatePostInput struct {
	Description string
	Image       *string
	Kind        model.PostKind
	ChannelName string
}

// target 校验并还原标签联合
func (in CreatePostInput) target() (model.PostTarget, error) {
	kind := in.Kind
	if kind == "" {
		kind = model.PostKindUser
		if in.ChannelName != "" {
			kind = model.PostKindChannel
		}
	}
	switch kind {
	case model.PostKindUser:
		if in.ChannelName != "" {
			return model.PostTarget{}, ErrInvalidPostKind
		}
		return model.UserTarget(), nil
	case model.PostKindChannel:
		if strings.TrimSpace(in.ChannelName) == "" {
			return model.PostTarget{}, ErrChannelRequired
		}
		return model.ChannelTarget(in.ChannelName), nil
	}
	return model.PostTarget{}, ErrInvalidPostKind
}

// Waker 唤醒投递 worker，不阻塞
type Waker interface {
	Wake()
}

// PostService 发帖与联邦状态入口
type PostService interface {
	CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error)
	GetPost(ctx context.Context, actorID, id string) (*model.Post, error)
	ListUserPosts(ctx context.Context, authorID string, page, pageSize int) ([]*model.Post, error)
	ListChannelPosts(ctx context.Context, actorID, channel string, page, pageSize int) ([]*model.Post, error)
	ListLocalTimeline(ctx context.Context, page, pageSize int) ([]*model.Post, error)
	// ListHomeTimeline 自己和关注用户的个人帖子，加上已加入频道的帖子
	ListHomeTimeline(ctx context.Context, userID string, page, pageSize int) ([]*model.Post, error)
	// DeletePost 作者或管理员
	DeletePost(ctx context.Context, actorID, id string) error
	// Requeue failed -> queued，重置轮次，只重投未确认的节点
	Requeue(ctx context.Context, actorID, id string) (*model.Post, error)
}

type postService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	channels   ChannelService
	minter     *identity.Minter
	waker      Waker
	serverName string
	metrics    *metrics.Metrics
}

// NewPostService waker 可为 nil（只落库，由轮询发现）
func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	channels ChannelService,
	minter *identity.Minter,
	waker Waker,
	serverName string,
	m *metrics.Metrics,
) PostService {
	if minter == nil {
		minter = identity.NewMinter(nil)
	}
	return &postService{
		postRepo:   postRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		channels:   channels,
		minter:     minter,
		waker:      waker,
		serverName: serverName,
		metrics:    m,
	}
}

func (s *postService) CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error) {
	author, err := identity.ParseKind(authorID, identity.KindUser)
	if err != nil {
		return nil, err
	}
	target, err := in.target()
	if err != nil {
		return nil, err
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" && in.Image == nil {
		return nil, ErrInvalidInput
	}
	// 只接受本节点用户发帖
	if author.Server() != s.serverName {
		return nil, ErrForbidden
	}
	if _, err := s.userRepo.GetByFederatedID(ctx, authorID); err != nil {
		return nil, translate(err)
	}

	federate := true
	if target.Kind == model.PostKindChannel {
		ok, err := s.channels.CanPost(ctx, authorID, target.Channel)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
		ch, err := s.channels.GetChannel(ctx, target.Channel)
		if err != nil {
			return nil, err
		}
		// 私有频道只对成员可读，远端节点无法执行成员校验，不外发
		federate = ch.Visibility != model.VisibilityPrivate
	}

	var servers []string
	if federate {
		servers, err = s.followRepo.RemoteFollowerServers(ctx, authorID, s.serverName)
		if err != nil {
			return nil, err
		}
	}

	post := &model.Post{
		AuthorID:     authorID,
		Description:  in.Description,
		Image:        in.Image,
		OriginServer: s.serverName,
		Kind:         target.Kind,
	}
	if target.Kind == model.PostKindChannel {
		name := target.Channel
		post.ChannelName = &name
	}

	// 进程重启后内存时钟为空，先按已落库的最大 id 推进，时钟回拨也不会铸出更小的 id
	if err := s.seedClock(ctx, authorID); err != nil {
		return nil, err
	}
	for i := 0; ; i++ {
		post.ID = ""
		post.FederatedID = s.minter.Mint(authorID, identity.KindPost).String()
		err = s.postRepo.Create(ctx, post, servers)
		if !errors.Is(err, repository.ErrDuplicate) || i >= maxMintRetries {
			break
		}
		// 其他进程抢先落了同一个 id
		if id, perr := identity.Parse(post.FederatedID); perr == nil {
			s.minter.Observe(id)
		}
	}
	if err != nil {
		return nil, translate(err)
	}

	s.metrics.ObserveTransition(string(post.FederationStatus))
	logger.Info("post created",
		zap.String("post", post.FederatedID),
		zap.String("kind", string(post.Kind)),
		zap.String("federation_status", string(post.FederationStatus)),
		zap.Strings("targets", servers))
	if post.FederationStatus == model.FederationQueued && s.waker != nil {
		s.waker.Wake()
	}
	return post, nil
}

func (s *postService) seedClock(ctx context.Context, authorID string) error {
	latest, err := s.postRepo.LatestFederatedID(ctx, authorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if id, perr := identity.Parse(latest); perr == nil {
		s.minter.Observe(id)
	}
	return nil
}

// GetPost id 可以是行 id 或联邦 id；频道帖子按频道读权限过滤
func (s *postService) GetPost(ctx context.Context, actorID, id string) (*model.Post, error) {
	var (
		post *model.Post
		err  error
	)
	if strings.Contains(id, "/") {
		if _, perr := identity.ParseKind(id, identity.KindPost); perr != nil {
			return nil, perr
		}
		post, err = s.postRepo.GetByFederatedID(ctx, id)
	} else {
		post, err = s.postRepo.Get(ctx, id)
	}
	if err != nil {
		return nil, translate(err)
	}
	if post.IsChannelPost() && post.OriginServer == s.serverName {
		ok, err := s.channels.CanRead(ctx, actorID, *post.ChannelName)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	return post, nil
}

func (s *postService) ListUserPosts(ctx context.Context, authorID string, page, pageSize int) ([]*model.Post, error) {
	if _, err := identity.ParseKind(authorID, identity.KindUser); err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)
	return s.postRepo.ListByAuthor(ctx, authorID, offset, limit)
}

func (s *postService) ListChannelPosts(ctx context.Context, actorID, channel string, page, pageSize int) ([]*model.Post, error) {
	ch, err := s.channels.GetChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	ok, err := s.channels.CanRead(ctx, actorID, ch.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	offset, limit := pageOffset(page, pageSize)
	return s.postRepo.ListByChannel(ctx, s.serverName, ch.Name, offset, limit)
}

func (s *postService) ListLocalTimeline(ctx context.Context, page, pageSize int) ([]*model.Post, error) {
	offset, limit := pageOffset(page, pageSize)
	return s.postRepo.ListLocal(ctx, s.serverName, offset, limit)
}

func (s *postService) ListHomeTimeline(ctx context.Context, userID string, page, pageSize int) ([]*model.Post, error) {
	if _, err := identity.ParseKind(userID, identity.KindUser); err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)
	return s.postRepo.ListHome(ctx, userID, s.serverName, offset, limit)
}

func (s *postService) DeletePost(ctx context.Context, actorID, id string) error {
	post, err := s.GetPost(ctx, actorID, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
			return err
		}
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return translate(err)
	}
	logger.Info("post deleted", zap.String("post", post.FederatedID), zap.String("by", actorID))
	return nil
}

func (s *postService) Requeue(ctx context.Context, actorID, id string) (*model.Post, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, err
	}
	post, err := s.GetPost(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if post.FederationStatus != model.FederationFailed {
		return nil, ErrNotRequeueable
	}
	err = s.postRepo.Transition(ctx, post.ID, model.FederationFailed, model.FederationQueued, map[string]any{
		"attempts":        0,
		"next_attempt_at": time.Now(),
		"last_error":      "",
	})
	if errors.Is(err, repository.ErrStateChanged) {
		return nil, ErrNotRequeueable
	}
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(model.FederationQueued))
	logger.Info("post requeued", zap.String("post", post.FederatedID), zap.String("by", actorID))
	if s.waker != nil {
		s.waker.Wake()
	}
	return s.postRepo.Get(ctx, post.ID)
}
