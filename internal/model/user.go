package model

import "time"

// Role 用户角色
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User 本地或远端用户（远端用户以镜像行存在，Server 为其来源节点）
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FederatedID    string    `json:"federated_id" gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName    string    `json:"display_name" gorm:"type:varchar(128)"`
	AvatarURL      string    `json:"avatar_url,omitempty" gorm:"type:varchar(512)"`
	Server         string    `json:"server" gorm:"type:varchar(255);index;not null"`
	Role           Role      `json:"role" gorm:"type:varchar(16);not null;default:user"`
	FollowersCount int64     `json:"followers_count" gorm:"not null;default:0"`
	FollowingCount int64     `json:"following_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
