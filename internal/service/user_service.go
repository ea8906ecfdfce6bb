package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kmsv-2726/federated-socmed/internal/identity"
	"github.com/kmsv-2726/federated-socmed/internal/model"
	"github.com/kmsv-2726/federated-socmed/internal/repository"
	"github.com/kmsv-2726/federated-socmed/pkg/logger"
)

// RegisterInput 本地注册参数；注册本身由外部账号系统完成，这里只落用户行
type RegisterInput struct {
	LocalID     string
	DisplayName string
	AvatarURL   string
	Admin       bool
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// UpsertRemote 远端用户首次出现时建镜像行，已存在直接返回
	UpsertRemote(ctx context.Context, federatedID, displayName string) (*model.User, error)
	GetProfile(ctx context.Context, federatedID string) (*model.User, error)
	List(ctx context.Context, page, pageSize int) ([]*model.User, error)
	IsAdmin(ctx context.Context, federatedID string) (bool, error)
}

type userService struct {
	userRepo   repository.UserRepository
	serverName string
}

func NewUserService(userRepo repository.UserRepository, serverName string) UserService {
	return &userService{userRepo: userRepo, serverName: serverName}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	local := strings.TrimSpace(in.LocalID)
	if local == "" {
		return nil, ErrInvalidInput
	}
	id := identity.UserID(s.serverName, local)
	if _, err := identity.ParseKind(id.String(), identity.KindUser); err != nil {
		return nil, err
	}
	u := &model.User{
		FederatedID: id.String(),
		DisplayName: in.DisplayName,
		AvatarURL:   in.AvatarURL,
		Server:      s.serverName,
		Role:        model.RoleUser,
	}
	if in.Admin {
		u.Role = model.RoleAdmin
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, translate(err)
	}
	logger.Info("user registered", zap.String("user", u.FederatedID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *userService) UpsertRemote(ctx context.Context, federatedID, displayName string) (*model.User, error) {
	id, err := identity.ParseKind(federatedID, identity.KindUser)
	if err != nil {
		return nil, err
	}
	if id.Server() == s.serverName {
		return nil, ErrInvalidInput
	}
	u := &model.User{FederatedID: federatedID, DisplayName: displayName, Server: id.Server()}
	err = s.userRepo.Create(ctx, u)
	if errors.Is(err, repository.ErrDuplicate) {
		return s.GetProfile(ctx, federatedID)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *userService) GetProfile(ctx context.Context, federatedID string) (*model.User, error) {
	if _, err := identity.ParseKind(federatedID, identity.KindUser); err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByFederatedID(ctx, federatedID)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *userService) List(ctx context.Context, page, pageSize int) ([]*model.User, error) {
	offset, limit := pageOffset(page, pageSize)
	return s.userRepo.List(ctx, offset, limit)
}

func (s *userService) IsAdmin(ctx context.Context, federatedID string) (bool, error) {
	return isAdmin(ctx, s.userRepo, federatedID)
}

// isAdmin 未知用户视为非管理员
func isAdmin(ctx context.Context, users repository.UserRepository, federatedID string) (bool, error) {
	u, err := users.GetByFederatedID(ctx, federatedID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

func requireAdmin(ctx context.Context, users repository.UserRepository, federatedID string) error {
	ok, err := isAdmin(ctx, users, federatedID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
