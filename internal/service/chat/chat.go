// Package chat 实现会话编排
// 负责会话状态机（创建、升级、关闭、恢复），协调健康监控、
// 在线状态和仲裁引擎，并通过仓库持久化结果。
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/config"
	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/repository"
	"github.com/dredbirozsolt/livechat/internal/service/ai"
	"github.com/dredbirozsolt/livechat/internal/service/escalation"
	"github.com/dredbirozsolt/livechat/internal/service/health"
	"github.com/dredbirozsolt/livechat/internal/service/notify"
	"github.com/dredbirozsolt/livechat/internal/service/presence"
	"github.com/dredbirozsolt/livechat/internal/service/types"
)

// nonClosedStatuses 所有非终态
var nonClosedStatuses = []string{
	model.StatusActive,
	model.StatusEscalated,
	model.StatusResolved,
	model.StatusOffline,
}

// Service 会话编排服务
type Service struct {
	repo     *repository.Repositories
	health   *health.Service
	presence *presence.Service
	provider ai.Provider
	notifier notify.Notifier
	cfg      *config.ChatConfig
	now      func() time.Time
}

// NewService 创建会话编排服务
func NewService(repo *repository.Repositories, healthSvc *health.Service, presenceSvc *presence.Service,
	provider ai.Provider, notifier notify.Notifier, cfg *config.ChatConfig) *Service {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &Service{
		repo:     repo,
		health:   healthSvc,
		presence: presenceSvc,
		provider: provider,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ========== 会话创建 ==========

// StartConversationRequest 创建会话请求
type StartConversationRequest struct {
	VisitorID      string `json:"visitor_id"`
	VisitorName    string `json:"visitor_name"`
	VisitorEmail   string `json:"visitor_email"`
	VisitorPhone   string `json:"visitor_phone"`
	InitialMessage string `json:"initial_message"`
}

// StartConversation 创建新会话
// 查询 AI 与人工通道健康状态，交给仲裁引擎决定初始归属并持久化。
// 升级到人工时客服分配与会话创建在同一条 INSERT 中落盘，
// 不存在"已升级但未分配"的窗口。AI 不可用永远不会使本操作失败。
func (s *Service) StartConversation(ctx context.Context, req *StartConversationRequest) (*model.Conversation, error) {
	if err := validateContact(req); err != nil {
		return nil, err
	}

	// 首条消息在落盘前校验，校验失败时不留下半成品会话行
	initialMessage := strings.TrimSpace(req.InitialMessage)
	if initialMessage != "" {
		var err error
		if initialMessage, err = s.validateContent(initialMessage); err != nil {
			return nil, err
		}
	}

	aiAvailable := false
	if aiHealth, err := s.health.CheckAI(ctx); err != nil {
		// 健康检查自身失败按不可用处理，吸收进仲裁决策
		log.Printf("chat: ai health check failed: %v", err)
	} else {
		aiAvailable = aiHealth.IsAvailable
	}

	var candidates []*model.OperatorPresence
	if chHealth, err := s.health.CheckOperatorChannel(ctx); err != nil {
		log.Printf("chat: operator channel health check failed: %v", err)
	} else if chHealth.IsAvailable {
		candidates, err = s.presence.ListAvailable(ctx)
		if err != nil {
			log.Printf("chat: failed to list available operators: %v", err)
			candidates = nil
		}
	}

	decision := escalation.Run(aiAvailable, candidates)

	now := s.now()
	conv := &model.Conversation{
		ID:             uuid.New().String(),
		Status:         decision.Status,
		FallbackReason: decision.FallbackReason,
		VisitorID:      optional(req.VisitorID),
		VisitorName:    optional(req.VisitorName),
		VisitorEmail:   optional(req.VisitorEmail),
		VisitorPhone:   optional(req.VisitorPhone),
	}
	if decision.Operator != nil {
		conv.AssignedOperatorID = &decision.Operator.OperatorID
		conv.EscalatedAt = &now
		conv.EscalationReason = "ai unavailable at conversation start"
	}

	if err := s.repo.Conversation.Create(conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	if initialMessage != "" {
		if _, err := s.appendMessage(conv, model.RoleVisitor, initialMessage, nil); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, notify.EventConversationStarted, conv, decision)
	return conv, nil
}

// ========== 消息追加 ==========

// AppendVisitorMessage 追加访客消息
func (s *Service) AppendVisitorMessage(ctx context.Context, conversationID, content string) (*model.Message, error) {
	conv, err := s.getWritable(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msg, err := s.appendMessage(conv, model.RoleVisitor, content, nil)
	if err != nil {
		return nil, err
	}

	if conv.Status == model.StatusOffline {
		evt := notify.NewEvent(notify.EventOfflineMessage, conv.ID)
		s.notifier.Publish(ctx, evt)
	}
	return msg, nil
}

// AppendOperatorMessage 追加客服回复
func (s *Service) AppendOperatorMessage(ctx context.Context, conversationID, operatorID, content string) (*model.Message, error) {
	if _, err := s.getOperator(operatorID); err != nil {
		return nil, err
	}

	conv, err := s.getWritable(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.appendMessage(conv, model.RoleOperator, content, &operatorID)
}

// AppendAgentMessage 追加 AI 回复
func (s *Service) AppendAgentMessage(ctx context.Context, conversationID, content string, metadata model.JSON) (*model.Message, error) {
	conv, err := s.getWritable(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	content, err = s.validateContent(content)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleAgent,
		Content:        content,
		Metadata:       metadata,
	}
	if err := s.repo.Message.Create(msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if err := s.repo.Conversation.Touch(conv.ID, s.now()); err != nil {
		log.Printf("chat: failed to touch conversation %s: %v", conv.ID, err)
	}
	return msg, nil
}

// ========== 状态转换 ==========

// Escalate 升级到人工客服
// 仅从非终态允许；已关闭的会话升级失败。追加系统消息记录原因。
func (s *Service) Escalate(ctx context.Context, conversationID, operatorID, reason string) (*model.Conversation, error) {
	op, err := s.getOperator(operatorID)
	if err != nil {
		return nil, err
	}
	if !op.CanReceiveEscalation() {
		return nil, types.Unauthorized("operator %s may not receive escalated conversations", operatorID)
	}

	conv, err := s.getWritable(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.repo.Conversation.UpdateStatusIf(conv.ID, nonClosedStatuses, map[string]interface{}{
		"status":               model.StatusEscalated,
		"assigned_operator_id": operatorID,
		"escalation_reason":    reason,
		"escalated_at":         now,
		"updated_at":           now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to escalate conversation: %w", err)
	}
	if !ok {
		return nil, types.InvalidState("conversation %s cannot be escalated from its current state", conv.ID)
	}

	sysMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleSystem,
		Content:        fmt.Sprintf("conversation escalated: %s", reason),
	}
	if err := s.repo.Message.Create(sysMsg); err != nil {
		log.Printf("chat: failed to record escalation note for %s: %v", conv.ID, err)
	}

	evt := notify.NewEvent(notify.EventConversationEscalated, conv.ID)
	evt.OperatorID = operatorID
	evt.Data = map[string]interface{}{"reason": reason}
	s.notifier.Publish(ctx, evt)

	return s.repo.Conversation.GetByID(conv.ID)
}

// Resolve 标记为已解决（非终态，仍可关闭）
func (s *Service) Resolve(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.getWritable(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.Conversation.UpdateStatusIf(conv.ID,
		[]string{model.StatusActive, model.StatusEscalated},
		map[string]interface{}{
			"status":     model.StatusResolved,
			"updated_at": s.now(),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}
	if !ok {
		return nil, types.InvalidState("conversation %s cannot be resolved from status %s", conv.ID, conv.Status)
	}
	return s.repo.Conversation.GetByID(conv.ID)
}

// Close 关闭会话
// 消息数超过阈值时异步生成摘要；摘要失败不影响关闭。
func (s *Service) Close(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.getWritable(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.repo.Conversation.UpdateStatusIf(conv.ID, nonClosedStatuses, map[string]interface{}{
		"status":     model.StatusClosed,
		"closed_at":  now,
		"updated_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close conversation: %w", err)
	}
	if !ok {
		return nil, types.InvalidState("conversation %s is already closed", conv.ID)
	}

	count, err := s.repo.Message.CountByConversation(conv.ID)
	if err != nil {
		log.Printf("chat: failed to count messages for %s: %v", conv.ID, err)
	} else if s.provider != nil && count > int64(s.cfg.SummaryMinMessages) {
		go s.generateSummary(conv.ID)
	}

	s.notifier.Publish(ctx, notify.NewEvent(notify.EventConversationClosed, conv.ID))
	return s.repo.Conversation.GetByID(conv.ID)
}

// ========== 退休操作 ==========

// SoftDelete 软删除会话
func (s *Service) SoftDelete(ctx context.Context, conversationID, reason string) error {
	conv, err := s.getAny(conversationID)
	if err != nil {
		return err
	}
	if conv.IsRetired() {
		return types.InvalidState("conversation %s is already retired", conversationID)
	}
	if reason == "" {
		reason = model.RetirementReasonManual
	}

	ok, err := s.repo.Conversation.SoftDelete(conversationID, reason, s.now())
	if err != nil {
		return fmt.Errorf("failed to soft delete conversation: %w", err)
	}
	if !ok {
		return types.InvalidState("conversation %s is already retired", conversationID)
	}
	return nil
}

// Anonymize 匿名化会话
// 身份字段清空与退休状态在单条更新中落盘，不可观察到中间态。
func (s *Service) Anonymize(ctx context.Context, conversationID string) error {
	conv, err := s.getAny(conversationID)
	if err != nil {
		return err
	}
	if conv.Anonymized {
		return types.InvalidState("conversation %s is already anonymized", conversationID)
	}

	ok, err := s.repo.Conversation.Anonymize(conversationID, model.RetirementReasonManual, s.now())
	if err != nil {
		return fmt.Errorf("failed to anonymize conversation: %w", err)
	}
	if !ok {
		return types.InvalidState("conversation %s is already anonymized", conversationID)
	}
	return nil
}

// Restore 恢复软删除的会话
// 已匿名化的会话无法恢复（信息已不可逆地清除）；未退休的会话无可恢复内容。
func (s *Service) Restore(ctx context.Context, conversationID string) error {
	conv, err := s.getAny(conversationID)
	if err != nil {
		return err
	}
	if conv.Anonymized {
		return types.InvalidState("conversation %s is anonymized and cannot be restored", conversationID)
	}
	if !conv.IsRetired() {
		return types.InvalidState("conversation %s is not retired", conversationID)
	}

	ok, err := s.repo.Conversation.Restore(conversationID)
	if err != nil {
		return fmt.Errorf("failed to restore conversation: %w", err)
	}
	if !ok {
		return types.InvalidState("conversation %s cannot be restored", conversationID)
	}
	return nil
}

// ========== 查询 ==========

// Get 获取会话（默认范围，排除已软删除）
func (s *Service) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.repo.Conversation.GetByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("conversation %s not found", conversationID)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// GetAny 获取会话（含已软删除，管理/审计路径）
func (s *Service) GetAny(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return s.getAny(conversationID)
}

// ListRequest 列出会话请求
type ListRequest struct {
	Status         string `form:"status"`
	OperatorID     string `form:"operator_id"`
	IncludeRetired bool   `form:"include_retired"`
	Page           int    `form:"page"`
	Size           int    `form:"size"`
}

// List 列出会话
func (s *Service) List(ctx context.Context, req *ListRequest) ([]*model.Conversation, int64, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Size <= 0 || req.Size > 100 {
		req.Size = 20
	}

	convs, total, err := s.repo.Conversation.List(repository.ListConversationsOptions{
		Status:         req.Status,
		OperatorID:     req.OperatorID,
		IncludeRetired: req.IncludeRetired,
		Offset:         (req.Page - 1) * req.Size,
		Limit:          req.Size,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, total, nil
}

// ListMessages 列出会话消息
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	if _, err := s.getAny(conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.Message.ListByConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead 将会话消息置为已读；role 为空时不过滤角色
func (s *Service) MarkRead(ctx context.Context, conversationID, role string) (int64, error) {
	if role != "" && !model.ValidRole(role) {
		return 0, types.Validation("invalid message role: %s", role)
	}
	if _, err := s.getAny(conversationID); err != nil {
		return 0, err
	}
	changed, err := s.repo.Message.MarkRead(conversationID, role, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return changed, nil
}

// UnreadCount 统计会话未读消息
func (s *Service) UnreadCount(ctx context.Context, conversationID, role string) (int64, error) {
	if role != "" && !model.ValidRole(role) {
		return 0, types.Validation("invalid message role: %s", role)
	}
	count, err := s.repo.Message.CountUnread(conversationID, role)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// ========== 内部辅助 ==========

// getWritable 获取可写入消息的会话：存在且未关闭
func (s *Service) getWritable(ctx context.Context, conversationID string) (*model.Conversation, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.IsClosed() {
		return nil, types.InvalidState("conversation %s is closed", conversationID)
	}
	return conv, nil
}

func (s *Service) getAny(conversationID string) (*model.Conversation, error) {
	conv, err := s.repo.Conversation.GetByIDAny(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("conversation %s not found", conversationID)
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *Service) getOperator(operatorID string) (*model.Operator, error) {
	op, err := s.repo.Operator.GetByID(operatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("operator %s not found", operatorID)
		}
		return nil, fmt.Errorf("failed to load operator: %w", err)
	}
	return op, nil
}

// appendMessage 校验并追加消息，刷新会话的 updated_at
func (s *Service) appendMessage(conv *model.Conversation, role, content string, operatorID *string) (*model.Message, error) {
	content, err := s.validateContent(content)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           role,
		Content:        content,
		OperatorID:     operatorID,
	}
	if err := s.repo.Message.Create(msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if err := s.repo.Conversation.Touch(conv.ID, s.now()); err != nil {
		log.Printf("chat: failed to touch conversation %s: %v", conv.ID, err)
	}
	return msg, nil
}

// generateSummary 关闭后的异步摘要生成（尽力而为）
func (s *Service) generateSummary(conversationID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("chat: summary generation panicked for %s: %v", conversationID, r)
		}
	}()

	ctx := context.Background()
	msgs, err := s.repo.Message.ListByConversation(conversationID)
	if err != nil {
		log.Printf("chat: failed to load messages for summary of %s: %v", conversationID, err)
		return
	}

	summary, err := s.provider.Summarize(ctx, msgs)
	if err != nil {
		log.Printf("chat: summary generation failed for %s: %v", conversationID, err)
		return
	}
	if summary == "" {
		return
	}

	if err := s.repo.Conversation.UpdateFields(conversationID, map[string]interface{}{
		"summary": summary,
	}); err != nil {
		log.Printf("chat: failed to store summary for %s: %v", conversationID, err)
	}
}

// publish 发布会话创建相关的通知
func (s *Service) publish(ctx context.Context, eventType notify.EventType, conv *model.Conversation, decision escalation.Decision) {
	evt := notify.NewEvent(eventType, conv.ID)
	evt.Data = map[string]interface{}{
		"status":          conv.Status,
		"fallback_reason": conv.FallbackReason,
	}
	if conv.AssignedOperatorID != nil {
		evt.OperatorID = *conv.AssignedOperatorID
	}
	s.notifier.Publish(ctx, evt)

	switch conv.Status {
	case model.StatusEscalated:
		esc := notify.NewEvent(notify.EventConversationEscalated, conv.ID)
		esc.OperatorID = evt.OperatorID
		esc.Data = map[string]interface{}{"reason": conv.EscalationReason}
		s.notifier.Publish(ctx, esc)
	case model.StatusOffline:
		s.notifier.Publish(ctx, notify.NewEvent(notify.EventOfflineMessage, conv.ID))
	}
}

// validateContent 校验消息体
func (s *Service) validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", types.Validation("message body is empty")
	}
	max := s.cfg.MaxMessageLength
	if max > 0 && len(content) > max {
		return "", types.Validation("message body exceeds %d characters", max)
	}
	return content, nil
}

// validateContact 校验访客联系字段
func validateContact(req *StartConversationRequest) error {
	if req.VisitorEmail != "" {
		if len(req.VisitorEmail) > 255 || !strings.Contains(req.VisitorEmail, "@") {
			return types.Validation("malformed visitor email")
		}
	}
	if len(req.VisitorName) > 255 {
		return types.Validation("visitor name too long")
	}
	if len(req.VisitorPhone) > 50 {
		return types.Validation("visitor phone too long")
	}
	return nil
}

// optional 空串转为 NULL
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
