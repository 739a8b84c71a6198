// Package testutil 提供测试用的内存仓库
// Store 复刻 SQL 实现的语义（默认查询范围、条件更新的资格复查、
// 单语句匿名化），让服务层测试不依赖数据库。
package testutil

import (
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/repository"
)

// Store 聚合全部内存仓库
type Store struct {
	mu sync.Mutex

	Convs     map[string]*model.Conversation
	Msgs      map[string][]*model.Message
	Presences map[string]*model.OperatorPresence
	Healths   map[string]*model.ServiceHealth
	Operators map[string]*model.Operator

	// ConvUpdated 每次 UpdateFields 后收到会话 ID（异步摘要测试用）
	ConvUpdated chan string
	// RetireErr 注入 RetireIfEligible 的单条失败
	RetireErr map[string]error

	seq int64
}

// NewStore 创建内存仓库
func NewStore() *Store {
	return &Store{
		Convs:       make(map[string]*model.Conversation),
		Msgs:        make(map[string][]*model.Message),
		Presences:   make(map[string]*model.OperatorPresence),
		Healths:     make(map[string]*model.ServiceHealth),
		Operators:   make(map[string]*model.Operator),
		ConvUpdated: make(chan string, 16),
		RetireErr:   make(map[string]error),
	}
}

// Repositories 以内存实现填充仓库集合
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Conversation: &convRepo{s},
		Message:      &msgRepo{s},
		Presence:     &presenceRepo{s},
		Health:       &healthRepo{s},
		Operator:     &operatorRepo{s},
	}
}

// AddOperator 写入一个客服账号
func (s *Store) AddOperator(id, role string, active bool) *model.Operator {
	op := &model.Operator{
		ID:       id,
		Username: id,
		Email:    id + "@example.com",
		Role:     role,
		IsActive: active,
	}
	s.mu.Lock()
	s.Operators[id] = op
	s.mu.Unlock()
	return op
}

// SetOnline 把客服置为在线，心跳时间为 hb
func (s *Store) SetOnline(operatorID string, hb time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := hb
	s.Presences[operatorID] = &model.OperatorPresence{
		OperatorID:      operatorID,
		IsOnline:        true,
		LastHeartbeat:   &t,
		AutoAwayMinutes: model.DefaultAutoAwayMinutes,
	}
}

// lastMessageAt 返回会话最后一条消息时间；无消息时 ok=false
func (s *Store) lastMessageAt(conversationID string) (time.Time, bool) {
	msgs := s.Msgs[conversationID]
	if len(msgs) == 0 {
		return time.Time{}, false
	}
	last := msgs[0].CreatedAt
	for _, m := range msgs[1:] {
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	return last, true
}

// retirementEligible 与 SQL 谓词一致的资格判断
func (s *Store) retirementEligible(conv *model.Conversation, inactiveBefore, abandonedBefore time.Time) bool {
	if last, ok := s.lastMessageAt(conv.ID); ok {
		return last.Before(inactiveBefore)
	}
	return conv.CreatedAt.Before(abandonedBefore)
}

// ========== ConversationRepository ==========

type convRepo struct{ s *Store }

func (r *convRepo) Create(conv *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	r.s.Convs[conv.ID] = conv
	return nil
}

func (r *convRepo) GetByID(id string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.Convs[id]
	if !ok || conv.RetiredAt != nil {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (r *convRepo) GetByIDAny(id string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.Convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (r *convRepo) List(opts repository.ListConversationsOptions) ([]*model.Conversation, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*model.Conversation
	for _, conv := range r.s.Convs {
		if !opts.IncludeRetired && conv.RetiredAt != nil {
			continue
		}
		if opts.Status != "" && conv.Status != opts.Status {
			continue
		}
		if opts.OperatorID != "" &&
			(conv.AssignedOperatorID == nil || *conv.AssignedOperatorID != opts.OperatorID) {
			continue
		}
		matched = append(matched, conv)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, total, nil
}

func (r *convRepo) UpdateFields(id string, fields map[string]interface{}) error {
	r.s.mu.Lock()
	conv, ok := r.s.Convs[id]
	if ok {
		applyConvFields(conv, fields)
	}
	r.s.mu.Unlock()

	select {
	case r.s.ConvUpdated <- id:
	default:
	}
	return nil
}

func (r *convRepo) UpdateStatusIf(id string, from []string, fields map[string]interface{}) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.Convs[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if conv.Status == status {
			applyConvFields(conv, fields)
			return true, nil
		}
	}
	return false, nil
}

func (r *convRepo) Touch(id string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if conv, ok := r.s.Convs[id]; ok {
		conv.UpdatedAt = now
	}
	return nil
}

func (r *convRepo) SoftDelete(id, reason string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.Convs[id]
	if !ok || conv.RetiredAt != nil {
		return false, nil
	}
	t := now
	conv.RetiredAt = &t
	conv.RetirementReason = reason
	return true, nil
}

func (r *convRepo) Anonymize(id, reason string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.Convs[id]
	if !ok || conv.Anonymized {
		return false, nil
	}
	anonymize(conv, reason, now)
	return true, nil
}

func (r *convRepo) Restore(id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	conv, ok := r.s.Convs[id]
	if !ok || conv.RetiredAt == nil || conv.Anonymized {
		return false, nil
	}
	conv.RetiredAt = nil
	conv.RetirementReason = ""
	return true, nil
}

func (r *convRepo) FindRetirementCandidates(inactiveBefore, abandonedBefore time.Time, limit int) ([]*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var candidates []*model.Conversation
	for _, conv := range r.s.Convs {
		if conv.RetiredAt != nil {
			continue
		}
		if r.s.retirementEligible(conv, inactiveBefore, abandonedBefore) {
			candidates = append(candidates, conv)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (r *convRepo) RetireIfEligible(id string, inactiveBefore, abandonedBefore, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err, ok := r.s.RetireErr[id]; ok {
		return false, err
	}
	conv, ok := r.s.Convs[id]
	if !ok || conv.RetiredAt != nil {
		return false, nil
	}
	if !r.s.retirementEligible(conv, inactiveBefore, abandonedBefore) {
		return false, nil
	}
	anonymize(conv, model.RetirementReasonAutoCleanup, now)
	return true, nil
}

func (r *convRepo) DeleteAnonymizedBefore(cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var deleted int64
	for id, conv := range r.s.Convs {
		if conv.Anonymized && conv.AnonymizedAt != nil && conv.AnonymizedAt.Before(cutoff) {
			delete(r.s.Convs, id)
			delete(r.s.Msgs, id)
			deleted++
		}
	}
	return deleted, nil
}

// applyConvFields 把列名到值的映射落到结构体上
func applyConvFields(conv *model.Conversation, fields map[string]interface{}) {
	for col, val := range fields {
		switch col {
		case "status":
			conv.Status = val.(string)
		case "fallback_reason":
			conv.FallbackReason = val.(string)
		case "assigned_operator_id":
			id := val.(string)
			conv.AssignedOperatorID = &id
		case "escalation_reason":
			conv.EscalationReason = val.(string)
		case "summary":
			conv.Summary = val.(string)
		case "escalated_at":
			t := val.(time.Time)
			conv.EscalatedAt = &t
		case "closed_at":
			t := val.(time.Time)
			conv.ClosedAt = &t
		case "updated_at":
			conv.UpdatedAt = val.(time.Time)
		}
	}
}

// anonymize 与 SQL 单语句匿名化一致的字段集合
func anonymize(conv *model.Conversation, reason string, now time.Time) {
	conv.VisitorID = nil
	conv.VisitorName = nil
	conv.VisitorEmail = nil
	conv.VisitorPhone = nil
	conv.Anonymized = true
	t := now
	conv.AnonymizedAt = &t
	if conv.RetiredAt == nil {
		conv.RetiredAt = &t
	}
	if conv.RetirementReason == "" {
		conv.RetirementReason = reason
	}
}

// ========== MessageRepository ==========

type msgRepo struct{ s *Store }

func (r *msgRepo) Create(msg *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.s.seq++
	msg.Seq = r.s.seq
	r.s.Msgs[msg.ConversationID] = append(r.s.Msgs[msg.ConversationID], msg)
	return nil
}

func (r *msgRepo) ListByConversation(conversationID string) ([]*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := append([]*model.Message(nil), r.s.Msgs[conversationID]...)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].Seq < msgs[j].Seq
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (r *msgRepo) CountByConversation(conversationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.Msgs[conversationID])), nil
}

func (r *msgRepo) CountUnread(conversationID, role string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, m := range r.s.Msgs[conversationID] {
		if m.IsRead {
			continue
		}
		if role != "" && m.Role != role {
			continue
		}
		count++
	}
	return count, nil
}

func (r *msgRepo) MarkRead(conversationID, role string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var changed int64
	for _, m := range r.s.Msgs[conversationID] {
		if m.IsRead {
			continue
		}
		if role != "" && m.Role != role {
			continue
		}
		m.IsRead = true
		t := now
		m.ReadAt = &t
		changed++
	}
	return changed, nil
}

func (r *msgRepo) DeleteByConversation(conversationID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.Msgs, conversationID)
	return nil
}

// ========== PresenceRepository ==========

type presenceRepo struct{ s *Store }

func (r *presenceRepo) Get(operatorID string) (*model.OperatorPresence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.Presences[operatorID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *presenceRepo) upsert(operatorID string) *model.OperatorPresence {
	p, ok := r.s.Presences[operatorID]
	if !ok {
		p = &model.OperatorPresence{
			OperatorID:      operatorID,
			AutoAwayMinutes: model.DefaultAutoAwayMinutes,
		}
		r.s.Presences[operatorID] = p
	}
	return p
}

func (r *presenceRepo) Heartbeat(operatorID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.upsert(operatorID)
	p.IsOnline = true
	hb := now
	p.LastHeartbeat = &hb
	return nil
}

func (r *presenceRepo) SetOnline(operatorID string, online bool, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.upsert(operatorID)
	p.IsOnline = online
	if online {
		hb := now
		p.LastHeartbeat = &hb
	}
	return nil
}

func (r *presenceRepo) ListAvailable(roles []string, now time.Time) ([]*model.OperatorPresence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	roleSet := make(map[string]bool, len(roles))
	for _, role := range roles {
		roleSet[role] = true
	}

	result := make([]*model.OperatorPresence, 0)
	for _, p := range r.s.Presences {
		if !p.AvailableAt(now) {
			continue
		}
		op, ok := r.s.Operators[p.OperatorID]
		if !ok || !op.IsActive || !roleSet[op.Role] {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.LastHeartbeat.Equal(*b.LastHeartbeat) {
			return a.OperatorID < b.OperatorID
		}
		return a.LastHeartbeat.Before(*b.LastHeartbeat)
	})
	return result, nil
}

func (r *presenceRepo) SweepStale(now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var changed int64
	for _, p := range r.s.Presences {
		if !p.IsOnline || p.LastHeartbeat == nil {
			continue
		}
		window := time.Duration(p.AutoAwayMinutes) * time.Minute
		if now.Sub(*p.LastHeartbeat) > window {
			p.IsOnline = false
			changed++
		}
	}
	return changed, nil
}

// ========== HealthRepository ==========

type healthRepo struct{ s *Store }

func (r *healthRepo) GetOrInitialize(name string, defaultAvailable bool) (*model.ServiceHealth, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h, ok := r.s.Healths[name]; ok {
		return h, nil
	}
	h := &model.ServiceHealth{Name: name, IsAvailable: defaultAvailable}
	r.s.Healths[name] = h
	return h, nil
}

func (r *healthRepo) UpdateFields(name string, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.Healths[name]
	if !ok {
		return nil
	}
	for col, val := range fields {
		switch col {
		case "is_available":
			h.IsAvailable = val.(bool)
		case "manually_disabled":
			h.ManuallyDisabled = val.(bool)
		case "error_message":
			h.ErrorMessage = val.(string)
		case "last_check_at":
			h.LastCheckAt = val.(time.Time)
		}
	}
	return nil
}

// ========== OperatorRepository ==========

type operatorRepo struct{ s *Store }

func (r *operatorRepo) Create(op *model.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.Operators[op.ID] = op
	return nil
}

func (r *operatorRepo) GetByID(id string) (*model.Operator, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if op, ok := r.s.Operators[id]; ok {
		return op, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *operatorRepo) GetByEmail(email string) (*model.Operator, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, op := range r.s.Operators {
		if op.Email == email {
			return op, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *operatorRepo) List(offset, limit int) ([]*model.Operator, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]*model.Operator, 0, len(r.s.Operators))
	for _, op := range r.s.Operators {
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, int64(len(result)), nil
}
