package model

import "time"

// 被监控的服务名称常量
const (
	ServiceAI              = "ai"               // AI 客服
	ServiceOperatorChannel = "operator_channel" // 人工客服通道
	ServiceSystem          = "system"           // 系统自身（数据库）
)

// ServiceHealth 服务可用性
// 每个被监控的服务一行；首次读取未知服务时自动创建默认行。
// ManuallyDisabled 是持久化的手动开关：手动禁用永远优先于自动探测。
type ServiceHealth struct {
	Name             string    `gorm:"primaryKey;size:50" json:"name"`
	IsAvailable      bool      `gorm:"default:true" json:"is_available"`
	ManuallyDisabled bool      `gorm:"default:false" json:"manually_disabled"`
	ErrorMessage     string    `gorm:"size:500" json:"error_message,omitempty"`
	LastCheckAt      time.Time `json:"last_check_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ServiceHealth) TableName() string {
	return "service_health"
}
