// Package notify 提供即发即忘的通知发布
// 核心只负责发出信号（会话升级、离线留言等），不等待投递结果。
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType 事件类型
type EventType string

const (
	// EventConversationStarted 新会话创建
	EventConversationStarted EventType = "conversation_started"
	// EventConversationEscalated 会话升级到人工
	EventConversationEscalated EventType = "conversation_escalated"
	// EventOfflineMessage 离线留言（AI 与人工均不可用时创建的会话）
	EventOfflineMessage EventType = "offline_message"
	// EventConversationClosed 会话关闭
	EventConversationClosed EventType = "conversation_closed"
)

// Event 通知事件
type Event struct {
	ID             string                 `json:"id"`
	EventType      EventType              `json:"event_type"`
	ConversationID string                 `json:"conversation_id"`
	OperatorID     string                 `json:"operator_id,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Notifier 通知发布接口
// 实现必须是即发即忘：不阻塞、不把投递失败上抛给调用方。
type Notifier interface {
	Publish(ctx context.Context, evt *Event)
}

// NewEvent 创建事件
func NewEvent(eventType EventType, conversationID string) *Event {
	return &Event{
		ID:             "evt_" + uuid.New().String(),
		EventType:      eventType,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	}
}

// ========== Redis 实现 ==========

// RedisNotifier 基于 Redis PUBLISH 的通知发布器
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier 创建 Redis 通知发布器
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Publish 发布事件；失败只记录日志
func (n *RedisNotifier) Publish(ctx context.Context, evt *Event) {
	if n.client == nil || evt == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("notify: failed to marshal event %s: %v", evt.EventType, err)
		return
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		log.Printf("notify: failed to publish event %s for conversation %s: %v",
			evt.EventType, evt.ConversationID, err)
	}
}

// ========== 空实现 ==========

// NopNotifier 丢弃所有事件（测试和禁用通知时使用）
type NopNotifier struct{}

// Publish 实现 Notifier 接口
func (NopNotifier) Publish(ctx context.Context, evt *Event) {}
