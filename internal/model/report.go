package model

import "time"

// ReportTarget 被举报对象类型
type ReportTarget string

const (
	ReportTargetPost    ReportTarget = "post"
	ReportTargetUser    ReportTarget = "user"
	ReportTargetChannel ReportTarget = "channel"
)

// Valid 是否为已知类型
func (t ReportTarget) Valid() bool {
	switch t {
	case ReportTargetPost, ReportTargetUser, ReportTargetChannel:
		return true
	}
	return false
}

// ReportStatus 举报状态；resolved / dismissed 为终态
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Valid 是否为已知状态
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// Terminal 是否终态
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

// CanTransition 只有 pending 能离开，且只能进入终态
func (s ReportStatus) CanTransition(to ReportStatus) bool {
	return s == ReportPending && to.Terminal()
}

// Report 举报记录
type Report struct {
	ID         string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TargetType ReportTarget `json:"target_type" gorm:"type:varchar(16);not null"`
	ReportedID string       `json:"reported_id" gorm:"type:varchar(320);index;not null"`
	ReporterID string       `json:"reporter_id" gorm:"type:varchar(255);not null"`
	Reason     string       `json:"reason" gorm:"type:text;not null"`
	Status     ReportStatus `json:"status" gorm:"type:varchar(16);index;not null;default:pending"`
	ClosedBy   string       `json:"closed_by,omitempty" gorm:"type:varchar(255)"`
	ClosedAt   *time.Time   `json:"closed_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Report) TableName() string { return "reports" }
