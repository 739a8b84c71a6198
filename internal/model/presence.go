package model

import "time"

// DefaultAutoAwayMinutes 心跳超时后自动置为离开的默认阈值（分钟）
const DefaultAutoAwayMinutes = 15

// OperatorPresence 客服在线状态
// 由心跳调用和手动上线/下线开关更新；升级引擎和过期清理读取。
type OperatorPresence struct {
	OperatorID      string     `gorm:"primaryKey;size:36" json:"operator_id"`
	IsOnline        bool       `gorm:"index;default:false" json:"is_online"`
	LastHeartbeat   *time.Time `gorm:"index" json:"last_heartbeat,omitempty"`
	AutoAwayMinutes int        `gorm:"default:15" json:"auto_away_minutes"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (OperatorPresence) TableName() string {
	return "operator_presences"
}

// AvailableAt 判断在 now 时刻该客服是否可接待：
// 在线且最近心跳仍在 auto-away 窗口内。
func (p *OperatorPresence) AvailableAt(now time.Time) bool {
	if !p.IsOnline || p.LastHeartbeat == nil {
		return false
	}
	window := time.Duration(p.AutoAwayMinutes) * time.Minute
	if window <= 0 {
		window = DefaultAutoAwayMinutes * time.Minute
	}
	return now.Sub(*p.LastHeartbeat) <= window
}
