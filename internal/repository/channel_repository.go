package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

// ErrDuplicate 唯一键冲突
var ErrDuplicate = errors.New("duplicate record")

type ChannelRepository interface {
	Create(ctx context.Context, ch *model.Channel) error
	GetByName(ctx context.Context, name string) (*model.Channel, error)
	List(ctx context.Context, offset, limit int) ([]*model.Channel, error)
}

type channelRepository struct{ db *gorm.DB }

func NewChannelRepository(db *gorm.DB) ChannelRepository { return &channelRepository{db: db} }

func (r *channelRepository) Create(ctx context.Context, ch *model.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Create(ch).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *channelRepository) GetByName(ctx context.Context, name string) (*model.Channel, error) {
	var ch model.Channel
	err := r.db.WithContext(ctx).Where("name = ?", model.NormalizeChannelName(name)).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) List(ctx context.Context, offset, limit int) ([]*model.Channel, error) {
	var res []*model.Channel
	err := r.db.WithContext(ctx).Order("name").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}
