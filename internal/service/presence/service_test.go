// Package presence 提供在线状态追踪单元测试
package presence

import (
	"context"
	"sort"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/service/types"
)

// ========== Mock 仓库 ==========

// mockOperatorRepo Mock 客服账号仓库
type mockOperatorRepo struct {
	operators map[string]*model.Operator
}

func newMockOperatorRepo() *mockOperatorRepo {
	return &mockOperatorRepo{operators: make(map[string]*model.Operator)}
}

func (m *mockOperatorRepo) Create(op *model.Operator) error {
	m.operators[op.ID] = op
	return nil
}

func (m *mockOperatorRepo) GetByID(id string) (*model.Operator, error) {
	if op, ok := m.operators[id]; ok {
		return op, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOperatorRepo) GetByEmail(email string) (*model.Operator, error) {
	for _, op := range m.operators {
		if op.Email == email {
			return op, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockOperatorRepo) List(offset, limit int) ([]*model.Operator, int64, error) {
	result := make([]*model.Operator, 0, len(m.operators))
	for _, op := range m.operators {
		result = append(result, op)
	}
	return result, int64(len(result)), nil
}

// mockPresenceRepo Mock 在线状态仓库
// 复刻 SQL 实现的语义：过期判断基于行内当前的心跳时间。
type mockPresenceRepo struct {
	rows map[string]*model.OperatorPresence
	ops  *mockOperatorRepo
}

func newMockPresenceRepo(ops *mockOperatorRepo) *mockPresenceRepo {
	return &mockPresenceRepo{
		rows: make(map[string]*model.OperatorPresence),
		ops:  ops,
	}
}

func (m *mockPresenceRepo) Get(operatorID string) (*model.OperatorPresence, error) {
	if p, ok := m.rows[operatorID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPresenceRepo) upsert(operatorID string) *model.OperatorPresence {
	p, ok := m.rows[operatorID]
	if !ok {
		p = &model.OperatorPresence{
			OperatorID:      operatorID,
			AutoAwayMinutes: model.DefaultAutoAwayMinutes,
		}
		m.rows[operatorID] = p
	}
	return p
}

func (m *mockPresenceRepo) Heartbeat(operatorID string, now time.Time) error {
	p := m.upsert(operatorID)
	p.IsOnline = true
	hb := now
	p.LastHeartbeat = &hb
	return nil
}

func (m *mockPresenceRepo) SetOnline(operatorID string, online bool, now time.Time) error {
	p := m.upsert(operatorID)
	p.IsOnline = online
	if online {
		hb := now
		p.LastHeartbeat = &hb
	}
	return nil
}

func (m *mockPresenceRepo) ListAvailable(roles []string, now time.Time) ([]*model.OperatorPresence, error) {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	result := make([]*model.OperatorPresence, 0)
	for _, p := range m.rows {
		if !p.AvailableAt(now) {
			continue
		}
		op, err := m.ops.GetByID(p.OperatorID)
		if err != nil || !op.IsActive || !roleSet[op.Role] {
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

func (m *mockPresenceRepo) SweepStale(now time.Time) (int64, error) {
	var changed int64
	for _, p := range m.rows {
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

// ========== 测试辅助 ==========

func newTestService() (*Service, *mockPresenceRepo, *mockOperatorRepo) {
	ops := newMockOperatorRepo()
	pres := newMockPresenceRepo(ops)
	svc := NewService(pres, ops)
	return svc, pres, ops
}

func addOperator(ops *mockOperatorRepo, id, role string, active bool) {
	ops.operators[id] = &model.Operator{
		ID:       id,
		Username: id,
		Email:    id + "@example.com",
		Role:     role,
		IsActive: active,
	}
}

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// ========== Heartbeat 测试 ==========

func TestHeartbeat_SetsOnline(t *testing.T) {
	svc, pres, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)
	svc.now = func() time.Time { return baseTime }

	if err := svc.Heartbeat(context.Background(), "op-1"); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	p := pres.rows["op-1"]
	if !p.IsOnline {
		t.Error("Heartbeat() did not set is_online")
	}
	if p.LastHeartbeat == nil || !p.LastHeartbeat.Equal(baseTime) {
		t.Errorf("Heartbeat() last_heartbeat = %v, want %v", p.LastHeartbeat, baseTime)
	}
}

func TestHeartbeat_Idempotent(t *testing.T) {
	svc, pres, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)
	svc.now = func() time.Time { return baseTime }

	for i := 0; i < 5; i++ {
		if err := svc.Heartbeat(context.Background(), "op-1"); err != nil {
			t.Fatalf("Heartbeat() #%d error = %v", i, err)
		}
		if !pres.rows["op-1"].IsOnline {
			t.Fatalf("Heartbeat() #%d reduced is_online", i)
		}
	}
}

func TestHeartbeat_UnknownOperator(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.Heartbeat(context.Background(), "nope")
	if !types.IsKind(err, types.KindNotFound) {
		t.Fatalf("Heartbeat() error = %v, want NotFound", err)
	}
}

// ========== SweepStale 测试 ==========

func TestSweepStale_FlipsExpired(t *testing.T) {
	svc, pres, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	if err := svc.Heartbeat(context.Background(), "op-1"); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	// 15 分钟阈值，T+16 时过期
	svc.now = func() time.Time { return baseTime.Add(16 * time.Minute) }
	changed, err := svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if changed != 1 {
		t.Errorf("SweepStale() changed = %d, want 1", changed)
	}
	if pres.rows["op-1"].IsOnline {
		t.Error("SweepStale() left expired operator online")
	}
}

func TestSweepStale_Idempotent(t *testing.T) {
	svc, _, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	_ = svc.Heartbeat(context.Background(), "op-1")

	svc.now = func() time.Time { return baseTime.Add(16 * time.Minute) }
	first, _ := svc.SweepStale(context.Background())
	second, _ := svc.SweepStale(context.Background())

	if first != 1 || second != 0 {
		t.Errorf("SweepStale() runs = (%d, %d), want (1, 0)", first, second)
	}
}

func TestSweepStale_FreshHeartbeatNotClobbered(t *testing.T) {
	svc, pres, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)
	addOperator(ops, "op-2", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	_ = svc.Heartbeat(context.Background(), "op-1")
	_ = svc.Heartbeat(context.Background(), "op-2")

	// op-2 在清理前一刻又发了心跳
	svc.now = func() time.Time { return baseTime.Add(16 * time.Minute) }
	_ = svc.Heartbeat(context.Background(), "op-2")

	changed, err := svc.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale() error = %v", err)
	}
	if changed != 1 {
		t.Errorf("SweepStale() changed = %d, want 1", changed)
	}
	if pres.rows["op-1"].IsOnline {
		t.Error("op-1 should be offline")
	}
	if !pres.rows["op-2"].IsOnline {
		t.Error("op-2 heartbeat was clobbered by the sweep")
	}
}

func TestSweepStale_RespectsPerOperatorThreshold(t *testing.T) {
	svc, pres, ops := newTestService()
	addOperator(ops, "op-long", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	_ = svc.Heartbeat(context.Background(), "op-long")
	pres.rows["op-long"].AutoAwayMinutes = 60

	svc.now = func() time.Time { return baseTime.Add(30 * time.Minute) }
	changed, _ := svc.SweepStale(context.Background())
	if changed != 0 {
		t.Errorf("SweepStale() changed = %d, want 0 (60min threshold)", changed)
	}
}

// ========== ListAvailable 测试 ==========

func TestListAvailable_FiltersRoleAndActivity(t *testing.T) {
	svc, _, ops := newTestService()
	addOperator(ops, "op-admin", model.OperatorRoleAdmin, true)
	addOperator(ops, "op-viewer", model.OperatorRoleViewer, true)
	addOperator(ops, "op-inactive", model.OperatorRoleOperator, false)

	svc.now = func() time.Time { return baseTime }
	for _, id := range []string{"op-admin", "op-viewer", "op-inactive"} {
		_ = svc.Heartbeat(context.Background(), id)
	}

	list, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if len(list) != 1 || list[0].OperatorID != "op-admin" {
		t.Errorf("ListAvailable() = %+v, want only op-admin", list)
	}
}

func TestListAvailable_ExcludesStaleHeartbeat(t *testing.T) {
	svc, _, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	_ = svc.Heartbeat(context.Background(), "op-1")

	// 心跳过期但尚未被清理：仍然不可用
	svc.now = func() time.Time { return baseTime.Add(17 * time.Minute) }
	list, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListAvailable() = %+v, want empty", list)
	}
}

func TestListAvailable_StableOrder(t *testing.T) {
	svc, _, ops := newTestService()
	addOperator(ops, "op-b", model.OperatorRoleOperator, true)
	addOperator(ops, "op-a", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	_ = svc.Heartbeat(context.Background(), "op-b")
	_ = svc.Heartbeat(context.Background(), "op-a")

	list, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if len(list) != 2 || list[0].OperatorID != "op-a" || list[1].OperatorID != "op-b" {
		t.Errorf("ListAvailable() order = %+v, want [op-a op-b]", list)
	}
}

// ========== SetOnline/SetOffline 测试 ==========

func TestSetOfflineManualOverride(t *testing.T) {
	svc, pres, ops := newTestService()
	addOperator(ops, "op-1", model.OperatorRoleOperator, true)

	svc.now = func() time.Time { return baseTime }
	_ = svc.Heartbeat(context.Background(), "op-1")
	if err := svc.SetOffline(context.Background(), "op-1"); err != nil {
		t.Fatalf("SetOffline() error = %v", err)
	}
	if pres.rows["op-1"].IsOnline {
		t.Error("SetOffline() did not set is_online=false")
	}

	if err := svc.SetOnline(context.Background(), "op-1"); err != nil {
		t.Fatalf("SetOnline() error = %v", err)
	}
	if !pres.rows["op-1"].IsOnline {
		t.Error("SetOnline() did not set is_online=true")
	}
}
