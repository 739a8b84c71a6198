package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 消息角色常量
const (
	RoleVisitor  = "visitor"  // 访客输入
	RoleAgent    = "agent"    // AI 回复
	RoleOperator = "operator" // 人工客服回复
	RoleSystem   = "system"   // 系统生成的状态备注
)

// Message 会话消息
// 消息是只追加的账本：除 is_read/read_at 外任何字段创建后不再变更。
type Message struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string     `gorm:"index;size:36;not null" json:"conversation_id"`
	Role           string     `gorm:"size:20;index" json:"role"`
	Content        string     `gorm:"type:text" json:"content"`
	OperatorID     *string    `gorm:"index;size:36" json:"operator_id,omitempty"`
	Metadata       JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`
	IsRead         bool       `gorm:"default:false" json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	// Seq 在创建时间相同时提供稳定的排序依据
	Seq       int64     `gorm:"autoIncrement;uniqueIndex" json:"seq"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// ValidRole 检查消息角色取值
func ValidRole(r string) bool {
	switch r {
	case RoleVisitor, RoleAgent, RoleOperator, RoleSystem:
		return true
	}
	return false
}

// JSON jsonb 列的通用类型
type JSON map[string]interface{}

// Value 实现 driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSON: unexpected type %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// GormDataType 指定列类型
func (JSON) GormDataType() string {
	return "jsonb"
}
