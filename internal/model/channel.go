package model

import (
	"strings"
	"time"
)

// Visibility 频道可见性，创建时确定
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityReadOnly Visibility = "read-only"
)

// Valid 是否为已知取值
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityReadOnly:
		return true
	}
	return false
}

// Channel 频道；成员关系复用 Follow，FederatedID 作为被关注方
type Channel struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name           string     `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
	FederatedID    string     `json:"federated_id" gorm:"type:varchar(255);uniqueIndex;not null"`
	Visibility     Visibility `json:"visibility" gorm:"type:varchar(16);not null"`
	Description    string     `json:"description" gorm:"type:text"`
	Image          *string    `json:"image,omitempty" gorm:"type:varchar(512)"`
	FollowersCount int64      `json:"followers_count" gorm:"not null;default:0"`
	CreatedBy      string     `json:"created_by" gorm:"type:varchar(255)"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Channel) TableName() string { return "channels" }

// NormalizeChannelName 频道名大小写归一
func NormalizeChannelName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
