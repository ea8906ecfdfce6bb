package model

import (
	"time"
)

// Follow 关注边（A 关注 B），B 可以是用户也可以是频道的合成标识
type Follow struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	FollowerID  string `gorm:"type:varchar(255);index:idx_follow_follower;uniqueIndex:idx_follow_pair;not null"`
	FollowingID string `gorm:"type:varchar(255);index:idx_follow_following;uniqueIndex:idx_follow_pair;not null"`
	// 复合唯一键，避免重复关注
	// idx_follow_pair = (follower_id, following_id)
	CreatedAt time.Time
}

func (Follow) TableName() string { return "follows" }
