package model

import "time"

// 客服角色常量
const (
	OperatorRoleAdmin    = "admin"    // 管理员，可接升级会话并管理系统
	OperatorRoleOperator = "operator" // 普通客服，可接升级会话
	OperatorRoleViewer   = "viewer"   // 只读角色，不参与升级分配
)

// EscalationRoles 有资格接收升级会话的角色
var EscalationRoles = []string{OperatorRoleAdmin, OperatorRoleOperator}

// Operator 客服账号
type Operator struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	DisplayName  string    `gorm:"size:255" json:"display_name"`
	Role         string    `gorm:"index;size:20;default:operator" json:"role"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Operator) TableName() string {
	return "operators"
}

// CanReceiveEscalation 是否有资格接收升级会话
func (o *Operator) CanReceiveEscalation() bool {
	if !o.IsActive {
		return false
	}
	for _, r := range EscalationRoles {
		if o.Role == r {
			return true
		}
	}
	return false
}

// ValidOperatorRole 检查角色取值
func ValidOperatorRole(r string) bool {
	switch r {
	case OperatorRoleAdmin, OperatorRoleOperator, OperatorRoleViewer:
		return true
	}
	return false
}
