package model

import "time"

// ReactionKind 每个用户对同一帖子只能点一次的互动
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionShare ReactionKind = "share"
)

func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionShare
}

// PostReaction 点赞 / 转发边，(post_id, user_id, kind) 唯一
type PostReaction struct {
	ID        string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string       `json:"post_id" gorm:"type:varchar(36);uniqueIndex:ux_reaction;not null"`
	UserID    string       `json:"user_id" gorm:"type:varchar(255);uniqueIndex:ux_reaction;not null"`
	Kind      ReactionKind `json:"kind" gorm:"type:varchar(16);uniqueIndex:ux_reaction;not null"`
	CreatedAt time.Time    `json:"created_at"`
}

func (PostReaction) TableName() string { return "post_reactions" }

// PostComment 评论
type PostComment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" gorm:"type:varchar(36);index:idx_comment_post;not null"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(255);not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_comment_post"`
}

func (PostComment) TableName() string { return "post_comments" }

// PostStats 互动计数，单独成表，帖子行本身不随互动变化
type PostStats struct {
	PostID    string    `json:"-" gorm:"primaryKey;type:varchar(36)"`
	Likes     int64     `json:"likes" gorm:"not null;default:0"`
	Comments  int64     `json:"comments" gorm:"not null;default:0"`
	Shares    int64     `json:"shares" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"-"`
}

func (PostStats) TableName() string { return "post_stats" }

// Column 对应的计数列
func (k ReactionKind) Column() string {
	if k == ReactionShare {
		return "shares"
	}
	return "likes"
}
