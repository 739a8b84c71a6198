// Package retirement 提供退休清理单元测试
package retirement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dredbirozsolt/livechat/internal/config"
	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/service/types"
	"github.com/dredbirozsolt/livechat/internal/testutil"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(hardDelete bool) (*Service, *testutil.Store) {
	store := testutil.NewStore()
	cfg := &config.ChatConfig{
		InactivityDays:      30,
		AbandonedDays:       90,
		HardDeleteEnabled:   hardDelete,
		HardDeleteAfterDays: 180,
	}
	svc := NewService(store.Repositories().Conversation, cfg)
	return svc, store
}

// addConversation 写入一个会话；lastMessage 为零值时表示零消息
func addConversation(store *testutil.Store, id string, createdAt, lastMessage time.Time) *model.Conversation {
	name := "Visitor " + id
	conv := &model.Conversation{
		ID:          id,
		Status:      model.StatusActive,
		VisitorName: &name,
		CreatedAt:   createdAt,
	}
	store.Convs[id] = conv
	if !lastMessage.IsZero() {
		store.Msgs[id] = []*model.Message{{
			ID:             id + "-m1",
			ConversationID: id,
			Role:           model.RoleVisitor,
			Content:        "hello",
			CreatedAt:      lastMessage,
		}}
	}
	return conv
}

// ========== Sweep 测试 ==========

func TestSweep_RetiresInactive(t *testing.T) {
	svc, store := newTestService(false)

	// 最后一条消息 31 天前：候选
	addConversation(store, "stale", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -31))
	// 最后一条消息 29 天前：保留
	addConversation(store, "fresh", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -29))

	report, err := svc.Sweep(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Candidates != 1 || report.Retired != 1 {
		t.Errorf("report = %+v, want 1 candidate retired", report)
	}

	stale := store.Convs["stale"]
	if stale.RetiredAt == nil || !stale.Anonymized {
		t.Error("stale conversation not retired and anonymized")
	}
	if stale.VisitorName != nil {
		t.Error("retirement did not clear visitor identity")
	}
	if stale.RetirementReason != model.RetirementReasonAutoCleanup {
		t.Errorf("retirement_reason = %s, want auto_cleanup", stale.RetirementReason)
	}
	if store.Convs["fresh"].RetiredAt != nil {
		t.Error("fresh conversation was retired")
	}
}

func TestSweep_RetiresAbandoned(t *testing.T) {
	svc, store := newTestService(false)

	// 零消息、创建 91 天前：候选
	addConversation(store, "abandoned", baseTime.AddDate(0, 0, -91), time.Time{})
	// 零消息、创建 89 天前：保留
	addConversation(store, "recent-empty", baseTime.AddDate(0, 0, -89), time.Time{})

	report, err := svc.Sweep(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Retired != 1 {
		t.Errorf("report = %+v, want exactly the abandoned conversation retired", report)
	}
	if store.Convs["abandoned"].RetiredAt == nil {
		t.Error("abandoned conversation not retired")
	}
	if store.Convs["recent-empty"].RetiredAt != nil {
		t.Error("recent empty conversation was retired")
	}
}

func TestSweep_DryRun(t *testing.T) {
	svc, store := newTestService(false)
	addConversation(store, "stale", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -31))

	report, err := svc.Sweep(context.Background(), Options{DryRun: true, Now: baseTime})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if !report.DryRun || report.Candidates != 1 || report.Retired != 0 {
		t.Errorf("report = %+v, want dry-run with 1 candidate and 0 retired", report)
	}
	if len(report.CandidateIDs) != 1 || report.CandidateIDs[0] != "stale" {
		t.Errorf("candidate_ids = %v, want [stale]", report.CandidateIDs)
	}
	if store.Convs["stale"].RetiredAt != nil {
		t.Error("dry run must not change anything")
	}
}

func TestSweep_SecondRunIdempotent(t *testing.T) {
	svc, store := newTestService(false)
	addConversation(store, "stale", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -31))

	first, err := svc.Sweep(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("first Sweep() error = %v", err)
	}
	second, err := svc.Sweep(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if first.Retired != 1 || second.Candidates != 0 || second.Retired != 0 {
		t.Errorf("runs = (%+v, %+v), want second run to find nothing", first, second)
	}
}

func TestSweep_EligibilityRecheckedPerRecord(t *testing.T) {
	svc, store := newTestService(false)
	conv := addConversation(store, "revived", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -31))

	// 扫描和更新之间收到了新消息：资格复查应跳过
	store.Msgs[conv.ID] = append(store.Msgs[conv.ID], &model.Message{
		ID:             "revived-m2",
		ConversationID: conv.ID,
		Role:           model.RoleVisitor,
		Content:        "actually, one more question",
		CreatedAt:      baseTime.Add(-time.Hour),
	})

	report, err := svc.Sweep(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Retired != 0 {
		t.Errorf("report = %+v, want revived conversation kept", report)
	}
	if store.Convs["revived"].RetiredAt != nil {
		t.Error("revived conversation was retired despite new message")
	}
}

func TestSweep_PerRecordFailureDoesNotAbort(t *testing.T) {
	svc, store := newTestService(false)
	addConversation(store, "bad", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -31))
	addConversation(store, "good", baseTime.AddDate(0, 0, -40), baseTime.AddDate(0, 0, -31))
	store.RetireErr["bad"] = errors.New("deadlock detected")

	report, err := svc.Sweep(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if report.Failed != 1 || report.Retired != 1 {
		t.Errorf("report = %+v, want 1 failed and 1 retired", report)
	}
	if len(report.Errors) != 1 {
		t.Errorf("errors = %v, want one entry", report.Errors)
	}
	if store.Convs["good"].RetiredAt == nil {
		t.Error("good conversation not retired after the bad one failed")
	}
}

// ========== HardDelete 测试 ==========

func TestHardDelete_Disabled(t *testing.T) {
	svc, _ := newTestService(false)

	_, err := svc.HardDelete(context.Background(), Options{Now: baseTime})
	if !types.IsKind(err, types.KindInvalidState) {
		t.Fatalf("HardDelete() error = %v, want InvalidState", err)
	}
}

func TestHardDelete_PurgesOldAnonymized(t *testing.T) {
	svc, store := newTestService(true)

	old := addConversation(store, "old", baseTime.AddDate(-1, 0, 0), time.Time{})
	oldAt := baseTime.AddDate(0, 0, -181)
	old.Anonymized = true
	old.AnonymizedAt = &oldAt
	old.RetiredAt = &oldAt

	recent := addConversation(store, "recent", baseTime.AddDate(-1, 0, 0), time.Time{})
	recentAt := baseTime.AddDate(0, 0, -10)
	recent.Anonymized = true
	recent.AnonymizedAt = &recentAt
	recent.RetiredAt = &recentAt

	// 已退休但未匿名化的记录结构上不可触及
	kept := addConversation(store, "kept", baseTime.AddDate(-1, 0, 0), time.Time{})
	kept.RetiredAt = &oldAt

	report, err := svc.HardDelete(context.Background(), Options{Now: baseTime})
	if err != nil {
		t.Fatalf("HardDelete() error = %v", err)
	}
	if report.Purged != 1 {
		t.Errorf("purged = %d, want 1", report.Purged)
	}
	if _, ok := store.Convs["old"]; ok {
		t.Error("old anonymized conversation not purged")
	}
	if _, ok := store.Convs["recent"]; !ok {
		t.Error("recently anonymized conversation was purged")
	}
	if _, ok := store.Convs["kept"]; !ok {
		t.Error("non-anonymized conversation was purged")
	}
}
