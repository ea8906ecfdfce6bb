package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/federation"
	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

// InboxService 接收远端节点投递的帖子。
// 远端帖子以本地镜像保存（federation_status=local），按 federated_id 去重，
// 重复投递直接确认，发送方据此把本节点计入 federatedTo。
type InboxService interface {
	Receive(ctx context.Context, in InboundDelivery) (post *model.Post, created bool, err error)
}

// InboundDelivery 一次入站投递的原始内容
type InboundDelivery struct {
	Origin    string
	Body      []byte
	Digest    string
	Signature string
}

// InboxAuth 入站签名校验。Keys 为对端节点 -> 共享密钥；
// 有密钥的节点必须签名，没有密钥的节点只在 Require=false 时放行
type InboxAuth struct {
	Keys    map[string]string
	Require bool
}

type inboxService struct {
	postRepo   repository.PostRepository
	userRepo   repository.UserRepository
	minter     *identity.Minter
	serverName string
	auth       InboxAuth
}

func NewInboxService(postRepo repository.PostRepository, userRepo repository.UserRepository, minter *identity.Minter, serverName string, auth InboxAuth) InboxService {
	return &inboxService{postRepo: postRepo, userRepo: userRepo, minter: minter, serverName: serverName, auth: auth}
}

// authenticate 校验发送方身份
func (s *inboxService) authenticate(origin string, body []byte, signature string) error {
	key, ok := s.auth.Keys[origin]
	if !ok {
		if s.auth.Require {
			return ErrForbidden
		}
		// 没有共享密钥时，origin 只是对方自报的请求头
		logger.Warn("unsigned federation delivery accepted", zap.String("origin", origin))
		return nil
	}
	if err := federation.VerifySignature([]byte(key), origin, body, signature); err != nil {
		logger.Warn("federation signature rejected", zap.String("origin", origin), zap.Error(err))
		return ErrForbidden
	}
	return nil
}

func (s *inboxService) Receive(ctx context.Context, in InboundDelivery) (*model.Post, bool, error) {
	origin, body := in.Origin, in.Body
	if err := s.authenticate(origin, body, in.Signature); err != nil {
		return nil, false, err
	}
	env, err := federation.Unmarshal(body, in.Digest)
	if err != nil {
		return nil, false, ErrInvalidInput
	}
	if env.Type != federation.TypePostCreate {
		return nil, false, ErrInvalidInput
	}
	id, err := identity.ParseKind(env.FederatedID, identity.KindPost)
	if err != nil {
		return nil, false, err
	}
	// 发送方只能投递自己节点铸造的帖子
	if env.Origin != origin || id.Server() != origin || id.Authority != env.AuthorID {
		return nil, false, ErrForbidden
	}
	if origin == s.serverName {
		return nil, false, ErrInvalidInput
	}

	post := env.Post()
	if post.Kind != model.PostKindUser && post.Kind != model.PostKindChannel {
		return nil, false, ErrInvalidPostKind
	}
	if post.IsChannelPost() != (post.ChannelName != nil) {
		return nil, false, ErrInvalidPostKind
	}

	s.ensureAuthor(ctx, env.AuthorID, origin)

	err = s.postRepo.Create(ctx, post, nil)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, gerr := s.postRepo.GetByFederatedID(ctx, env.FederatedID)
		if gerr != nil {
			return nil, false, translate(gerr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if s.minter != nil {
		s.minter.Observe(id)
	}
	logger.Info("remote post received", zap.String("post", post.FederatedID), zap.String("origin", origin))
	return post, true, nil
}

// ensureAuthor 远端作者首次出现时建镜像行
func (s *inboxService) ensureAuthor(ctx context.Context, authorID, server string) {
	u := &model.User{FederatedID: authorID, Server: server}
	err := s.userRepo.Create(ctx, u)
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		logger.Warn("mirror remote author failed", zap.String("user", authorID), zap.Error(err))
	}
}
