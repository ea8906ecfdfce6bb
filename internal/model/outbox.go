package model

import "time"

// Delivery 帖子到单个远端节点的外发记录（联邦 outbox）
// (post_id, server) 唯一，AckedAt 非空即表示该节点已确认
type Delivery struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)"`
	PostID    string     `gorm:"type:varchar(36);uniqueIndex:ux_outbox_post_server;not null"`
	Server    string     `gorm:"type:varchar(255);uniqueIndex:ux_outbox_post_server;not null"`
	AckedAt   *time.Time `gorm:"index"`
	Attempts  int        `gorm:"not null;default:0"`
	LastError string     `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Delivery) TableName() string { return "outbox" }
