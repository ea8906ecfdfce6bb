package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

// ErrStateChanged 条件更新未命中：记录已不在期望状态
var ErrStateChanged = errors.New("record is no longer in the expected state")

type AccessRequestRepository interface {
	// CreatePending 若同一 (user, channel) 已有 pending 申请则返回它，created=false
	CreatePending(ctx context.Context, userID, channelName string) (req *model.ChannelAccessRequest, created bool, err error)
	Get(ctx context.Context, id string) (*model.ChannelAccessRequest, error)
	ListByChannel(ctx context.Context, channelName string, status model.AccessRequestStatus, offset, limit int) ([]*model.ChannelAccessRequest, error)
	Decide(ctx context.Context, id string, to model.AccessRequestStatus, decidedBy string) error
}

type accessRequestRepository struct{ db *gorm.DB }

func NewAccessRequestRepository(db *gorm.DB) AccessRequestRepository {
	return &accessRequestRepository{db: db}
}

func (r *accessRequestRepository) CreatePending(ctx context.Context, userID, channelName string) (*model.ChannelAccessRequest, bool, error) {
	var out model.ChannelAccessRequest
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND channel_name = ? AND status = ?", userID, channelName, model.AccessPending).
			First(&out).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		out = model.ChannelAccessRequest{
			ID:          uuid.New().String(),
			UserID:      userID,
			ChannelName: channelName,
			Status:      model.AccessPending,
		}
		created = true
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

func (r *accessRequestRepository) Get(ctx context.Context, id string) (*model.ChannelAccessRequest, error) {
	var req model.ChannelAccessRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *accessRequestRepository) ListByChannel(ctx context.Context, channelName string, status model.AccessRequestStatus, offset, limit int) ([]*model.ChannelAccessRequest, error) {
	var res []*model.ChannelAccessRequest
	q := r.db.WithContext(ctx).Where("channel_name = ?", channelName)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

// Decide pending -> approved/rejected，单条条件更新
func (r *accessRequestRepository) Decide(ctx context.Context, id string, to model.AccessRequestStatus, decidedBy string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.ChannelAccessRequest{}).
		Where("id = ? AND status = ?", id, model.AccessPending).
		Updates(map[string]any{"status": to, "decided_by": decidedBy, "decided_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}
