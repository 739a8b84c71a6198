package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// messageRepositoryImpl 消息数据访问
type messageRepositoryImpl struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepositoryImpl{db: db}
}

// Create 追加消息
func (r *messageRepositoryImpl) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// ListByConversation 按创建时间排序列出会话消息，时间相同时按插入序
func (r *messageRepositoryImpl) ListByConversation(conversationID string) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, seq ASC").
		Find(&messages).Error
	return messages, err
}

// CountByConversation 统计会话消息数
func (r *messageRepositoryImpl) CountByConversation(conversationID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// CountUnread 统计未读消息
func (r *messageRepositoryImpl) CountUnread(conversationID, role string) (int64, error) {
	query := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND is_read = ?", conversationID, false)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

// MarkRead 批量置为已读
func (r *messageRepositoryImpl) MarkRead(conversationID, role string, now time.Time) (int64, error) {
	query := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND is_read = ?", conversationID, false)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	res := query.Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	})
	return res.RowsAffected, res.Error
}

// DeleteByConversation 删除会话全部消息（仅物理删除阶段）
func (r *messageRepositoryImpl) DeleteByConversation(conversationID string) error {
	return r.db.Delete(&model.Message{}, "conversation_id = ?", conversationID).Error
}
