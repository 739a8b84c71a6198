// Package escalation 提供仲裁逻辑单元测试
package escalation

import (
	"testing"
	"time"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// ========== Decide 测试 ==========

func TestDecide(t *testing.T) {
	tests := []struct {
		name               string
		aiAvailable        bool
		operatorsAvailable bool
		wantStatus         string
		wantReason         string
	}{
		{
			name:               "ai available, operators available",
			aiAvailable:        true,
			operatorsAvailable: true,
			wantStatus:         model.StatusActive,
			wantReason:         model.FallbackNone,
		},
		{
			name:               "ai available, no operators",
			aiAvailable:        true,
			operatorsAvailable: false,
			wantStatus:         model.StatusActive,
			wantReason:         model.FallbackNone,
		},
		{
			name:               "ai down, operators available",
			aiAvailable:        false,
			operatorsAvailable: true,
			wantStatus:         model.StatusEscalated,
			wantReason:         model.FallbackAIUnavailable,
		},
		{
			name:               "ai down, no operators",
			aiAvailable:        false,
			operatorsAvailable: false,
			wantStatus:         model.StatusOffline,
			wantReason:         model.FallbackBothUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := Decide(tt.aiAvailable, tt.operatorsAvailable)
			if status != tt.wantStatus {
				t.Errorf("Decide() status = %s, want %s", status, tt.wantStatus)
			}
			if reason != tt.wantReason {
				t.Errorf("Decide() reason = %s, want %s", reason, tt.wantReason)
			}
		})
	}
}

// ========== PickOperator 测试 ==========

func ts(minutesAgo int) *time.Time {
	t := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC).Add(-time.Duration(minutesAgo) * time.Minute)
	return &t
}

func TestPickOperator_EarliestHeartbeat(t *testing.T) {
	candidates := []*model.OperatorPresence{
		{OperatorID: "op-b", IsOnline: true, LastHeartbeat: ts(1)},
		{OperatorID: "op-a", IsOnline: true, LastHeartbeat: ts(10)},
		{OperatorID: "op-c", IsOnline: true, LastHeartbeat: ts(5)},
	}

	picked := PickOperator(candidates)
	if picked == nil || picked.OperatorID != "op-a" {
		t.Fatalf("PickOperator() = %+v, want op-a (earliest heartbeat)", picked)
	}
}

func TestPickOperator_TieBreakByID(t *testing.T) {
	same := ts(3)
	candidates := []*model.OperatorPresence{
		{OperatorID: "op-z", IsOnline: true, LastHeartbeat: same},
		{OperatorID: "op-a", IsOnline: true, LastHeartbeat: same},
		{OperatorID: "op-m", IsOnline: true, LastHeartbeat: same},
	}

	picked := PickOperator(candidates)
	if picked == nil || picked.OperatorID != "op-a" {
		t.Fatalf("PickOperator() = %+v, want op-a (lowest ID on tie)", picked)
	}
}

func TestPickOperator_Deterministic(t *testing.T) {
	same := ts(3)
	candidates := []*model.OperatorPresence{
		{OperatorID: "op-2", LastHeartbeat: same},
		{OperatorID: "op-1", LastHeartbeat: same},
	}

	first := PickOperator(candidates)
	for i := 0; i < 10; i++ {
		if got := PickOperator(candidates); got.OperatorID != first.OperatorID {
			t.Fatalf("PickOperator() not deterministic: got %s then %s", first.OperatorID, got.OperatorID)
		}
	}
	// 输入顺序不影响结果
	reversed := []*model.OperatorPresence{candidates[1], candidates[0]}
	if got := PickOperator(reversed); got.OperatorID != first.OperatorID {
		t.Fatalf("PickOperator() order-dependent: got %s, want %s", got.OperatorID, first.OperatorID)
	}
}

func TestPickOperator_Empty(t *testing.T) {
	if got := PickOperator(nil); got != nil {
		t.Fatalf("PickOperator(nil) = %+v, want nil", got)
	}
}

func TestPickOperator_DoesNotMutateInput(t *testing.T) {
	candidates := []*model.OperatorPresence{
		{OperatorID: "op-b", LastHeartbeat: ts(1)},
		{OperatorID: "op-a", LastHeartbeat: ts(10)},
	}

	PickOperator(candidates)
	if candidates[0].OperatorID != "op-b" {
		t.Fatal("PickOperator() mutated the candidate slice")
	}
}

// ========== Run 测试 ==========

func TestRun_EscalatedCarriesOperator(t *testing.T) {
	candidates := []*model.OperatorPresence{
		{OperatorID: "op-1", IsOnline: true, LastHeartbeat: ts(2)},
	}

	d := Run(false, candidates)
	if d.Status != model.StatusEscalated {
		t.Fatalf("Run() status = %s, want escalated", d.Status)
	}
	if d.Operator == nil || d.Operator.OperatorID != "op-1" {
		t.Fatalf("Run() operator = %+v, want op-1", d.Operator)
	}
}

func TestRun_ActiveHasNoOperator(t *testing.T) {
	candidates := []*model.OperatorPresence{
		{OperatorID: "op-1", IsOnline: true, LastHeartbeat: ts(2)},
	}

	d := Run(true, candidates)
	if d.Status != model.StatusActive || d.Operator != nil {
		t.Fatalf("Run() = %+v, want active with nil operator", d)
	}
}

func TestRun_OfflineWhenNothingAvailable(t *testing.T) {
	d := Run(false, nil)
	if d.Status != model.StatusOffline || d.FallbackReason != model.FallbackBothUnavailable {
		t.Fatalf("Run() = %+v, want offline/both_unavailable", d)
	}
	if d.Operator != nil {
		t.Fatalf("Run() operator = %+v, want nil", d.Operator)
	}
}
