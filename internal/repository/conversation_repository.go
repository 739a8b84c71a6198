package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// retirementEligibleSQL 退休候选谓词：
// 最后一条消息早于 inactiveBefore，或零消息且创建时间早于 abandonedBefore。
// 扫描和逐条更新共用同一谓词，保证"扫描后又收到消息"的会话不会被误退休。
const retirementEligibleSQL = `(
	(SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = conversations.id) < ?
	OR (NOT EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = conversations.id)
		AND conversations.created_at < ?)
)`

// conversationRepositoryImpl 会话数据访问
type conversationRepositoryImpl struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepositoryImpl{db: db}
}

// scoped 默认查询范围：排除已软删除的记录
func (r *conversationRepositoryImpl) scoped() *gorm.DB {
	return r.db.Where("retired_at IS NULL")
}

// Create 创建会话
func (r *conversationRepositoryImpl) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// GetByID 获取会话（默认范围）
func (r *conversationRepositoryImpl) GetByID(id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.scoped().Where("id = ?", id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetByIDAny 获取会话（含已软删除，供管理/审计路径）
func (r *conversationRepositoryImpl) GetByIDAny(id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Where("id = ?", id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// List 列出会话
func (r *conversationRepositoryImpl) List(opts ListConversationsOptions) ([]*model.Conversation, int64, error) {
	query := r.db.Model(&model.Conversation{})
	if !opts.IncludeRetired {
		query = query.Where("retired_at IS NULL")
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.OperatorID != "" {
		query = query.Where("assigned_operator_id = ?", opts.OperatorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var convs []*model.Conversation
	err := query.Order("created_at DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&convs).Error
	return convs, total, err
}

// UpdateFields 更新指定字段
func (r *conversationRepositoryImpl) UpdateFields(id string, fields map[string]interface{}) error {
	return r.db.Model(&model.Conversation{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatusIf 仅当当前状态属于 from 时更新
func (r *conversationRepositoryImpl) UpdateStatusIf(id string, from []string, fields map[string]interface{}) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// Touch 刷新 updated_at
func (r *conversationRepositoryImpl) Touch(id string, now time.Time) error {
	return r.db.Model(&model.Conversation{}).Where("id = ?", id).
		Update("updated_at", now).Error
}

// SoftDelete 软删除：仅当尚未退休时生效
func (r *conversationRepositoryImpl) SoftDelete(id, reason string, now time.Time) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND retired_at IS NULL", id).
		Updates(map[string]interface{}{
			"retired_at":        now,
			"retirement_reason": reason,
		})
	return res.RowsAffected > 0, res.Error
}

// Anonymize 匿名化：单条 UPDATE 同时清空身份字段并落退休状态，
// 不存在"已退休但身份未清空"可被崩溃暴露的中间态。
func (r *conversationRepositoryImpl) Anonymize(id, reason string, now time.Time) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND anonymized = ?", id, false).
		Updates(anonymizeFields(reason, now))
	return res.RowsAffected > 0, res.Error
}

// Restore 恢复软删除：仅对未匿名化且已退休的记录生效
func (r *conversationRepositoryImpl) Restore(id string) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND retired_at IS NOT NULL AND anonymized = ?", id, false).
		Updates(map[string]interface{}{
			"retired_at":        nil,
			"retirement_reason": "",
		})
	return res.RowsAffected > 0, res.Error
}

// FindRetirementCandidates 扫描退休候选（未退休且满足不活跃条件）
func (r *conversationRepositoryImpl) FindRetirementCandidates(inactiveBefore, abandonedBefore time.Time, limit int) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	query := r.db.Model(&model.Conversation{}).
		Where("retired_at IS NULL").
		Where(retirementEligibleSQL, inactiveBefore, abandonedBefore).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&convs).Error
	return convs, err
}

// RetireIfEligible 带资格复查的退休更新
func (r *conversationRepositoryImpl) RetireIfEligible(id string, inactiveBefore, abandonedBefore, now time.Time) (bool, error) {
	res := r.db.Model(&model.Conversation{}).
		Where("id = ? AND retired_at IS NULL", id).
		Where(retirementEligibleSQL, inactiveBefore, abandonedBefore).
		Updates(anonymizeFields(model.RetirementReasonAutoCleanup, now))
	return res.RowsAffected > 0, res.Error
}

// DeleteAnonymizedBefore 物理删除长期匿名化的会话及其消息
func (r *conversationRepositoryImpl) DeleteAnonymizedBefore(cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.Conversation{}).
			Where("anonymized = ? AND anonymized_at < ?", true, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Delete(&model.Message{}, "conversation_id IN ?", ids).Error; err != nil {
			return err
		}
		// 删除谓词再次限定 anonymized，结构上排除未匿名化记录
		res := tx.Delete(&model.Conversation{}, "id IN ? AND anonymized = ?", ids, true)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// anonymizeFields 匿名化更新的字段集合
func anonymizeFields(reason string, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"visitor_id":    nil,
		"visitor_name":  nil,
		"visitor_email": nil,
		"visitor_phone": nil,
		"anonymized":    true,
		"anonymized_at": now,
		"retired_at":    gorm.Expr("COALESCE(retired_at, ?)", now),
		"retirement_reason": gorm.Expr(
			"CASE WHEN retirement_reason IS NULL OR retirement_reason = '' THEN ? ELSE retirement_reason END",
			reason),
	}
}
