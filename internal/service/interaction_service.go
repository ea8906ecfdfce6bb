package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

const maxCommentLen = 2000

// InteractionService 点赞、转发、评论。
// 能读到帖子的用户才能互动，频道帖子沿用频道读权限。
type InteractionService interface {
	React(ctx context.Context, actorID, postID string, kind model.ReactionKind) (model.PostStats, error)
	Unreact(ctx context.Context, actorID, postID string, kind model.ReactionKind) (model.PostStats, error)
	Comment(ctx context.Context, actorID, postID, body string) (*model.PostComment, error)
	ListComments(ctx context.Context, actorID, postID string, page, pageSize int) ([]*model.PostComment, error)
}

type interactionService struct {
	repo     repository.InteractionRepository
	posts    PostService
	postRepo repository.PostRepository
	userRepo repository.UserRepository
}

func NewInteractionService(
	repo repository.InteractionRepository,
	posts PostService,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
) InteractionService {
	return &interactionService{repo: repo, posts: posts, postRepo: postRepo, userRepo: userRepo}
}

// visible 取帖子并校验 actor 是已注册用户
func (s *interactionService) visible(ctx context.Context, actorID, postID string) (*model.Post, error) {
	if actorID == "" {
		return nil, ErrForbidden
	}
	if _, err := s.userRepo.GetByFederatedID(ctx, actorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return s.posts.GetPost(ctx, actorID, postID)
}

func (s *interactionService) React(ctx context.Context, actorID, postID string, kind model.ReactionKind) (model.PostStats, error) {
	if !kind.Valid() {
		return model.PostStats{}, ErrInvalidInput
	}
	post, err := s.visible(ctx, actorID, postID)
	if err != nil {
		return model.PostStats{}, err
	}
	if err := s.repo.React(ctx, post.ID, actorID, kind); err != nil {
		return model.PostStats{}, translate(err)
	}
	logger.Debug("post reaction", zap.String("post", post.FederatedID), zap.String("kind", string(kind)))
	return s.stats(ctx, post.ID)
}

func (s *interactionService) Unreact(ctx context.Context, actorID, postID string, kind model.ReactionKind) (model.PostStats, error) {
	if !kind.Valid() {
		return model.PostStats{}, ErrInvalidInput
	}
	post, err := s.visible(ctx, actorID, postID)
	if err != nil {
		return model.PostStats{}, err
	}
	if err := s.repo.Unreact(ctx, post.ID, actorID, kind); err != nil {
		return model.PostStats{}, translate(err)
	}
	return s.stats(ctx, post.ID)
}

func (s *interactionService) Comment(ctx context.Context, actorID, postID, body string) (*model.PostComment, error) {
	body = strings.TrimSpace(body)
	if body == "" || utf8.RuneCountInString(body) > maxCommentLen {
		return nil, ErrInvalidInput
	}
	post, err := s.visible(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	c := &model.PostComment{PostID: post.ID, AuthorID: actorID, Body: body}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *interactionService) ListComments(ctx context.Context, actorID, postID string, page, pageSize int) ([]*model.PostComment, error) {
	post, err := s.posts.GetPost(ctx, actorID, postID)
	if err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)
	return s.repo.ListComments(ctx, post.ID, offset, limit)
}

func (s *interactionService) stats(ctx context.Context, postID string) (model.PostStats, error) {
	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return model.PostStats{}, translate(err)
	}
	return post.Stats, nil
}
