// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"time"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// ========== ConversationRepository 接口 ==========

// ListConversationsOptions 会话列表查询条件
type ListConversationsOptions struct {
	Status     string
	OperatorID string
	// IncludeRetired 管理/审计路径可显式绕过默认的 retired_at IS NULL 过滤
	IncludeRetired bool
	Offset         int
	Limit          int
}

// ConversationRepository 会话数据访问接口
// 默认查询范围排除已软删除的记录（retired_at IS NULL）；
// 带 Any 后缀的方法显式绕过该范围，供管理和审计路径使用。
type ConversationRepository interface {
	Create(conv *model.Conversation) error
	GetByID(id string) (*model.Conversation, error)
	GetByIDAny(id string) (*model.Conversation, error)
	List(opts ListConversationsOptions) ([]*model.Conversation, int64, error)

	// UpdateFields 无条件更新指定字段
	UpdateFields(id string, fields map[string]interface{}) error
	// UpdateStatusIf 仅当当前状态属于 from 时更新；返回是否有行被更新
	UpdateStatusIf(id string, from []string, fields map[string]interface{}) (bool, error)
	// Touch 刷新 updated_at（消息追加时调用）
	Touch(id string, now time.Time) error

	// 退休子状态操作（单语句条件更新，保证原子性）
	SoftDelete(id, reason string, now time.Time) (bool, error)
	Anonymize(id, reason string, now time.Time) (bool, error)
	Restore(id string) (bool, error)

	// 退休清理扫描
	FindRetirementCandidates(inactiveBefore, abandonedBefore time.Time, limit int) ([]*model.Conversation, error)
	// RetireIfEligible 在 UPDATE 的 WHERE 中复查资格条件，避免匿名化扫描后又收到消息的会话
	RetireIfEligible(id string, inactiveBefore, abandonedBefore, now time.Time) (bool, error)
	// DeleteAnonymizedBefore 物理删除匿名化时间早于 cutoff 的会话；谓词保证不会触及未匿名化记录
	DeleteAnonymizedBefore(cutoff time.Time) (int64, error)
}

// ========== MessageRepository 接口 ==========

// MessageRepository 消息数据访问接口
// 只追加账本：除已读标记外不提供任何修改操作。
type MessageRepository interface {
	Create(msg *model.Message) error
	ListByConversation(conversationID string) ([]*model.Message, error)
	CountByConversation(conversationID string) (int64, error)
	// CountUnread 统计未读消息；role 为空时不过滤角色
	CountUnread(conversationID, role string) (int64, error)
	// MarkRead 批量置为已读；返回更新的行数
	MarkRead(conversationID, role string, now time.Time) (int64, error)
	// DeleteByConversation 仅供物理删除阶段使用
	DeleteByConversation(conversationID string) error
}

// ========== PresenceRepository 接口 ==========

// PresenceRepository 在线状态数据访问接口
type PresenceRepository interface {
	Get(operatorID string) (*model.OperatorPresence, error)
	// Heartbeat 置为在线并刷新心跳时间；行不存在时创建
	Heartbeat(operatorID string, now time.Time) error
	// SetOnline 手动上线/下线开关
	SetOnline(operatorID string, online bool, now time.Time) error
	// ListAvailable 返回通过可用性过滤的在线客服：
	// is_online 且心跳在 auto-away 窗口内，且账号激活并持授权角色；
	// 按心跳时间升序、客服 ID 升序的稳定顺序。
	ListAvailable(roles []string, now time.Time) ([]*model.OperatorPresence, error)
	// SweepStale 将心跳过期的在线客服置为离线；
	// 在同一条 UPDATE 中复查心跳时间，避免覆盖并发到达的心跳。返回更新行数。
	SweepStale(now time.Time) (int64, error)
}

// ========== HealthRepository 接口 ==========

// HealthRepository 服务健康数据访问接口
type HealthRepository interface {
	// GetOrInitialize 读取服务行；不存在时以 defaultAvailable 创建默认行
	GetOrInitialize(name string, defaultAvailable bool) (*model.ServiceHealth, error)
	UpdateFields(name string, fields map[string]interface{}) error
}

// ========== OperatorRepository 接口 ==========

// OperatorRepository 客服账号数据访问接口
type OperatorRepository interface {
	Create(op *model.Operator) error
	GetByID(id string) (*model.Operator, error)
	GetByEmail(email string) (*model.Operator, error)
	List(offset, limit int) ([]*model.Operator, int64, error)
}

// 确保各实现满足接口
var (
	_ ConversationRepository = (*conversationRepositoryImpl)(nil)
	_ MessageRepository      = (*messageRepositoryImpl)(nil)
	_ PresenceRepository     = (*presenceRepositoryImpl)(nil)
	_ HealthRepository       = (*healthRepositoryImpl)(nil)
	_ OperatorRepository     = (*operatorRepositoryImpl)(nil)
)
