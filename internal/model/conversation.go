package model

import "time"

// 会话生命周期状态常量
const (
	StatusActive    = "active"    // AI 正常接待
	StatusEscalated = "escalated" // 已升级到人工客服
	StatusResolved  = "resolved"  // 已标记解决
	StatusClosed    = "closed"    // 已关闭（终态）
	StatusOffline   = "offline"   // 离线留言（创建时 AI 和人工均不可用）
)

// 降级原因常量
const (
	FallbackNone             = "none"
	FallbackAIUnavailable    = "ai_unavailable"
	FallbackNoOperatorOnline = "no_operator_online"
	FallbackBothUnavailable  = "both_unavailable"
	FallbackAIError          = "ai_error"
)

// 退休原因常量
const (
	RetirementReasonAutoCleanup = "auto_cleanup" // 定时清理
	RetirementReasonManual      = "manual"       // 管理员手动删除
)

// Conversation 访客会话
// 生命周期状态（status）与退休状态（retired_at/anonymized）是两条正交的轴：
// 任何生命周期状态下的会话都可以被软删除和匿名化。
// 不变量：anonymized = true 时访客身份字段必须全部为空且 retired_at 非空。
type Conversation struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	VisitorID          *string    `gorm:"index;size:36" json:"visitor_id,omitempty"`
	VisitorName        *string    `gorm:"size:255" json:"visitor_name,omitempty"`
	VisitorEmail       *string    `gorm:"size:255" json:"visitor_email,omitempty"`
	VisitorPhone       *string    `gorm:"size:50" json:"visitor_phone,omitempty"`
	Status             string     `gorm:"index;size:20;default:active" json:"status"`
	FallbackReason     string     `gorm:"size:30;default:none" json:"fallback_reason"`
	AssignedOperatorID *string    `gorm:"index;size:36" json:"assigned_operator_id,omitempty"`
	EscalationReason   string     `gorm:"size:500" json:"escalation_reason,omitempty"`
	Summary            string     `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	EscalatedAt        *time.Time `json:"escalated_at,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`

	// 退休子状态
	RetiredAt        *time.Time `gorm:"index" json:"retired_at,omitempty"`
	RetirementReason string     `gorm:"size:50" json:"retirement_reason,omitempty"`
	Anonymized       bool       `gorm:"default:false" json:"anonymized"`
	AnonymizedAt     *time.Time `json:"anonymized_at,omitempty"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

// IsClosed 是否处于终态
func (c *Conversation) IsClosed() bool {
	return c.Status == StatusClosed
}

// IsRetired 是否已被软删除
func (c *Conversation) IsRetired() bool {
	return c.RetiredAt != nil
}

// ValidStatus 检查生命周期状态取值
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusEscalated, StatusResolved, StatusClosed, StatusOffline:
		return true
	}
	return false
}
