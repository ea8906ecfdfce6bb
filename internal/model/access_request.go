package model

import "time"

// AccessRequestStatus 私有频道加入申请状态
type AccessRequestStatus string

const (
	AccessPending  AccessRequestStatus = "pending"
	AccessApproved AccessRequestStatus = "approved"
	AccessRejected AccessRequestStatus = "rejected"
)

// ChannelAccessRequest 私有频道加入申请，与 Follow 分开存放，不影响计数
type ChannelAccessRequest struct {
	ID          string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string              `json:"user_id" gorm:"type:varchar(255);index:idx_access_pair;not null"`
	ChannelName string              `json:"channel_name" gorm:"type:varchar(64);index:idx_access_pair;index;not null"`
	Status      AccessRequestStatus `json:"status" gorm:"type:varchar(16);index;not null"`
	DecidedBy   string              `json:"decided_by,omitempty" gorm:"type:varchar(255)"`
	DecidedAt   *time.Time          `json:"decided_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (ChannelAccessRequest) TableName() string { return "channel_access_requests" }
