package model

import "time"

// PostKind 帖子归属：个人时间线或频道，二者互斥
type PostKind string

const (
	PostKindUser    PostKind = "user"
	PostKindChannel PostKind = "channel"
)

// PostTarget 帖子放置位置的标签联合；Channel 仅在 Kind == PostKindChannel 时有值
type PostTarget struct {
	Kind    PostKind
	Channel string
}

// UserTarget 发到作者自己的时间线
func UserTarget() PostTarget { return PostTarget{Kind: PostKindUser} }

// ChannelTarget 发到频道
func ChannelTarget(name string) PostTarget {
	return PostTarget{Kind: PostKindChannel, Channel: NormalizeChannelName(name)}
}

// Post 内容主体
type Post struct {
	ID           string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FederatedID  string   `json:"federated_id" gorm:"type:varchar(320);uniqueIndex;not null"`
	AuthorID     string   `json:"author_id" gorm:"type:varchar(255);index:idx_post_author;not null"`
	Description  string   `json:"description" gorm:"type:text;not null"`
	Image        *string  `json:"image,omitempty" gorm:"type:varchar(512)"`
	OriginServer string   `json:"origin_server" gorm:"type:varchar(255);index;not null"`
	Kind         PostKind `json:"kind" gorm:"type:varchar(16);not null"`
	ChannelName  *string  `json:"channel_name,omitempty" gorm:"type:varchar(64);index"`

	FederationStatus FederationStatus `json:"federation_status" gorm:"type:varchar(16);index:idx_post_due;not null"`
	Attempts         int              `json:"attempts" gorm:"not null;default:0"`
	NextAttemptAt    *time.Time       `json:"next_attempt_at,omitempty" gorm:"index:idx_post_due"`
	ClaimedUntil     *time.Time       `json:"-"`
	LastError        string           `json:"last_error,omitempty" gorm:"type:text"`
	// FederatedTo 已确认的远端节点，由 outbox 行派生，不落库
	FederatedTo []string `json:"federated_to" gorm:"-"`
	// Stats 互动计数，来自 post_stats
	Stats PostStats `json:"stats" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// Target 还原标签联合
func (p *Post) Target() PostTarget {
	if p.Kind == PostKindChannel && p.ChannelName != nil {
		return PostTarget{Kind: PostKindChannel, Channel: *p.ChannelName}
	}
	return UserTarget()
}

// IsUserPost / IsChannelPost 兼容旧客户端的布尔视图
func (p *Post) IsUserPost() bool    { return p.Kind == PostKindUser }
func (p *Post) IsChannelPost() bool { return p.Kind == PostKindChannel }
