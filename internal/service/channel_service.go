package service

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/metrics"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

var channelNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// CreateChannelInput 建频道参数
type CreateChannelInput struct {
	Name        string
	Visibility  model.Visibility
	Description string
	Image       *string
}

// ChannelService 频道访问控制
//
//	visibility | 读          | 发帖              | 加入
//	public     | 任何人      | 成员或管理员      | 直接关注
//	read-only  | 任何人      | 仅管理员          | 直接关注
//	private    | 成员或管理员 | 成员或管理员      | 申请后由管理员批准
type ChannelService interface {
	CreateChannel(ctx context.Context, actorID string, in CreateChannelInput) (*model.Channel, error)
	GetChannel(ctx context.Context, name string) (*model.Channel, error)
	ListChannels(ctx context.Context, page, pageSize int) ([]*model.Channel, error)

	CanRead(ctx context.Context, userID, channel string) (bool, error)
	CanPost(ctx context.Context, userID, channel string) (bool, error)

	Join(ctx context.Context, userID, channel string) error
	Leave(ctx context.Context, userID, channel string) error
	RequestAccess(ctx context.Context, userID, channel string) (*model.ChannelAccessRequest, error)

	ListRequests(ctx context.Context, actorID, channel string, status model.AccessRequestStatus, page, pageSize int) ([]*model.ChannelAccessRequest, error)
	ApproveRequest(ctx context.Context, actorID, requestID string) (*model.ChannelAccessRequest, error)
	RejectRequest(ctx context.Context, actorID, requestID string) (*model.ChannelAccessRequest, error)
}

type channelService struct {
	channelRepo repository.ChannelRepository
	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	requestRepo repository.AccessRequestRepository
	relations   RelationshipService
	serverName  string
	metrics     *metrics.Metrics
}

func NewChannelService(
	channelRepo repository.ChannelRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	requestRepo repository.AccessRequestRepository,
	relations RelationshipService,
	serverName string,
	m *metrics.Metrics,
) ChannelService {
	return &channelService{
		channelRepo: channelRepo,
		userRepo:    userRepo,
		followRepo:  followRepo,
		requestRepo: requestRepo,
		relations:   relations,
		serverName:  serverName,
		metrics:     m,
	}
}

func (s *channelService) CreateChannel(ctx context.Context, actorID string, in CreateChannelInput) (*model.Channel, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, err
	}
	name := model.NormalizeChannelName(in.Name)
	if !channelNamePattern.MatchString(name) {
		return nil, ErrInvalidInput
	}
	if in.Visibility == "" {
		in.Visibility = model.VisibilityPublic
	}
	if !in.Visibility.Valid() {
		return nil, ErrInvalidInput
	}
	ch := &model.Channel{
		Name:        name,
		FederatedID: identity.ChannelID(s.serverName, name).String(),
		Visibility:  in.Visibility,
		Description: in.Description,
		Image:       in.Image,
		CreatedBy:   actorID,
	}
	if err := s.channelRepo.Create(ctx, ch); err != nil {
		return nil, translate(err)
	}
	logger.Info("channel created",
		zap.String("channel", ch.Name),
		zap.String("visibility", string(ch.Visibility)),
		zap.String("by", actorID))
	return ch, nil
}

func (s *channelService) GetChannel(ctx context.Context, name string) (*model.Channel, error) {
	ch, err := s.channelRepo.GetByName(ctx, name)
	if err != nil {
		return nil, translate(err)
	}
	return ch, nil
}

func (s *channelService) ListChannels(ctx context.Context, page, pageSize int) ([]*model.Channel, error) {
	offset, limit := pageOffset(page, pageSize)
	return s.channelRepo.List(ctx, offset, limit)
}

func (s *channelService) isMember(ctx context.Context, userID string, ch *model.Channel) (bool, error) {
	return s.followRepo.Exists(ctx, userID, ch.FederatedID)
}

func (s *channelService) CanRead(ctx context.Context, userID, channel string) (bool, error) {
	ch, err := s.GetChannel(ctx, channel)
	if err != nil {
		return false, err
	}
	return s.canRead(ctx, userID, ch)
}

func (s *channelService) canRead(ctx context.Context, userID string, ch *model.Channel) (bool, error) {
	if ch.Visibility != model.VisibilityPrivate {
		return true, nil
	}
	return s.memberOrAdmin(ctx, userID, ch)
}

func (s *channelService) CanPost(ctx context.Context, userID, channel string) (bool, error) {
	ch, err := s.GetChannel(ctx, channel)
	if err != nil {
		return false, err
	}
	switch ch.Visibility {
	case model.VisibilityReadOnly:
		return isAdmin(ctx, s.userRepo, userID)
	case model.VisibilityPublic, model.VisibilityPrivate:
		return s.memberOrAdmin(ctx, userID, ch)
	}
	return false, nil
}

func (s *channelService) memberOrAdmin(ctx context.Context, userID string, ch *model.Channel) (bool, error) {
	if userID == "" {
		return false, nil
	}
	member, err := s.isMember(ctx, userID, ch)
	if err != nil || member {
		return member, err
	}
	return isAdmin(ctx, s.userRepo, userID)
}

func (s *channelService) Join(ctx context.Context, userID, channel string) error {
	ch, err := s.GetChannel(ctx, channel)
	if err != nil {
		return err
	}
	if ch.Visibility == model.VisibilityPrivate {
		return ErrApprovalRequired
	}
	return s.relations.Follow(ctx, userID, ch.FederatedID)
}

func (s *channelService) Leave(ctx context.Context, userID, channel string) error {
	ch, err := s.GetChannel(ctx, channel)
	if err != nil {
		return err
	}
	return s.relations.Unfollow(ctx, userID, ch.FederatedID)
}

// RequestAccess 记录私有频道申请；已有 pending 申请时原样返回，不改动任何计数
func (s *channelService) RequestAccess(ctx context.Context, userID, channel string) (*model.ChannelAccessRequest, error) {
	if _, err := identity.ParseKind(userID, identity.KindUser); err != nil {
		return nil, err
	}
	ch, err := s.GetChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	if ch.Visibility != model.VisibilityPrivate {
		return nil, ErrNoApprovalNeeded
	}
	member, err := s.isMember(ctx, userID, ch)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyFollowing
	}
	req, created, err := s.requestRepo.CreatePending(ctx, userID, ch.Name)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.IncAccessRequest()
		logger.Info("channel access requested", zap.String("user", userID), zap.String("channel", ch.Name))
	}
	return req, nil
}

func (s *channelService) ListRequests(ctx context.Context, actorID, channel string, status model.AccessRequestStatus, page, pageSize int) ([]*model.ChannelAccessRequest, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, err
	}
	ch, err := s.GetChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	offset, limit := pageOffset(page, pageSize)
	return s.requestRepo.ListByChannel(ctx, ch.Name, status, offset, limit)
}

// ApproveRequest 先建关注边，再把申请置为 approved。
// 关注边已存在（用户在别处被加入）视为成功；申请已被处理返回 ErrRequestClosed。
func (s *channelService) ApproveRequest(ctx context.Context, actorID, requestID string) (*model.ChannelAccessRequest, error) {
	req, ch, err := s.pendingRequest(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.relations.Follow(ctx, req.UserID, ch.FederatedID); err != nil && !errors.Is(err, ErrAlreadyFollowing) {
		return nil, err
	}
	return s.decide(ctx, req, model.AccessApproved, actorID)
}

func (s *channelService) RejectRequest(ctx context.Context, actorID, requestID string) (*model.ChannelAccessRequest, error) {
	req, _, err := s.pendingRequest(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, req, model.AccessRejected, actorID)
}

func (s *channelService) pendingRequest(ctx context.Context, actorID, requestID string) (*model.ChannelAccessRequest, *model.Channel, error) {
	if err := requireAdmin(ctx, s.userRepo, actorID); err != nil {
		return nil, nil, err
	}
	req, err := s.requestRepo.Get(ctx, requestID)
	if err != nil {
		return nil, nil, translate(err)
	}
	if req.Status != model.AccessPending {
		return nil, nil, ErrRequestClosed
	}
	ch, err := s.GetChannel(ctx, req.ChannelName)
	if err != nil {
		return nil, nil, err
	}
	return req, ch, nil
}

func (s *channelService) decide(ctx context.Context, req *model.ChannelAccessRequest, to model.AccessRequestStatus, actorID string) (*model.ChannelAccessRequest, error) {
	err := s.requestRepo.Decide(ctx, req.ID, to, actorID)
	if errors.Is(err, repository.ErrStateChanged) {
		return nil, ErrRequestClosed
	}
	if err != nil {
		return nil, err
	}
	logger.Info("channel access decided",
		zap.String("request", req.ID),
		zap.String("user", req.UserID),
		zap.String("channel", req.ChannelName),
		zap.String("status", string(to)))
	return s.requestRepo.Get(ctx, req.ID)
}
