// Package health 提供服务健康监控单元测试
package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/testutil"
)

// fakeProvider 可控的 AI 服务商
type fakeProvider struct {
	configured bool
	probeErr   error
}

func (p *fakeProvider) Configured() bool                { return p.configured }
func (p *fakeProvider) Probe(ctx context.Context) error { return p.probeErr }
func (p *fakeProvider) Summarize(ctx context.Context, msgs []*model.Message) (string, error) {
	return "", nil
}

var baseTime = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

func newTestService(provider *fakeProvider, pinger func(ctx context.Context) error) (*Service, *testutil.Store) {
	store := testutil.NewStore()
	svc := NewService(store.Repositories().Health, provider, pinger)
	svc.now = func() time.Time { return baseTime }
	return svc, store
}

// ========== CheckAI 测试 ==========

func TestCheckAI_Available(t *testing.T) {
	svc, store := newTestService(&fakeProvider{configured: true}, nil)

	h, err := svc.CheckAI(context.Background())
	if err != nil {
		t.Fatalf("CheckAI() error = %v", err)
	}
	if !h.IsAvailable || h.ErrorMessage != "" {
		t.Errorf("CheckAI() = %+v, want available with empty error", h)
	}
	if !h.LastCheckAt.Equal(baseTime) {
		t.Errorf("last_check_at = %v, want %v", h.LastCheckAt, baseTime)
	}

	// 结果落盘
	if row := store.Healths[model.ServiceAI]; !row.IsAvailable {
		t.Error("check result not persisted")
	}
}

func TestCheckAI_CredentialsMissing(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{configured: false}, nil)

	h, err := svc.CheckAI(context.Background())
	if err != nil {
		t.Fatalf("CheckAI() error = %v", err)
	}
	if h.IsAvailable {
		t.Error("CheckAI() available without credentials")
	}
	if h.ErrorMessage != ReasonCredentialsMissing {
		t.Errorf("error_message = %q, want %q", h.ErrorMessage, ReasonCredentialsMissing)
	}
}

func TestCheckAI_ProbeFailure(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{configured: true, probeErr: errors.New("upstream timeout")}, nil)

	h, err := svc.CheckAI(context.Background())
	if err != nil {
		t.Fatalf("CheckAI() error = %v", err)
	}
	if h.IsAvailable {
		t.Error("CheckAI() available despite probe failure")
	}
	if h.ErrorMessage != "upstream timeout" {
		t.Errorf("error_message = %q, want probe error", h.ErrorMessage)
	}
}

func TestCheckAI_NilProvider(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	svc.provider = nil

	h, err := svc.CheckAI(context.Background())
	if err != nil {
		t.Fatalf("CheckAI() error = %v", err)
	}
	if h.IsAvailable || h.ErrorMessage != ReasonCredentialsMissing {
		t.Errorf("CheckAI() = %+v, want unavailable/credentials missing", h)
	}
}

// ========== 手动开关测试 ==========

func TestToggleAI_DisableOverridesProbe(t *testing.T) {
	// 探测路径完全健康，但手动禁用必须优先
	svc, _ := newTestService(&fakeProvider{configured: true}, nil)

	h, err := svc.ToggleAI(context.Background(), false)
	if err != nil {
		t.Fatalf("ToggleAI(false) error = %v", err)
	}
	if h.IsAvailable || !h.ManuallyDisabled {
		t.Errorf("ToggleAI(false) = %+v, want unavailable and manually disabled", h)
	}

	checked, err := svc.CheckAI(context.Background())
	if err != nil {
		t.Fatalf("CheckAI() error = %v", err)
	}
	if checked.IsAvailable {
		t.Error("CheckAI() available while manually disabled")
	}
	if checked.ErrorMessage != ReasonManuallyDisabled {
		t.Errorf("error_message = %q, want %q", checked.ErrorMessage, ReasonManuallyDisabled)
	}
}

func TestToggleAI_ReenableRestoresProbing(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{configured: true}, nil)

	if _, err := svc.ToggleAI(context.Background(), false); err != nil {
		t.Fatalf("ToggleAI(false) error = %v", err)
	}
	if _, err := svc.ToggleAI(context.Background(), true); err != nil {
		t.Fatalf("ToggleAI(true) error = %v", err)
	}

	h, err := svc.CheckAI(context.Background())
	if err != nil {
		t.Fatalf("CheckAI() error = %v", err)
	}
	if !h.IsAvailable {
		t.Errorf("CheckAI() after re-enable = %+v, want available", h)
	}
}

func TestToggleOperatorChannel(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{configured: true}, nil)

	if _, err := svc.ToggleOperatorChannel(context.Background(), false); err != nil {
		t.Fatalf("ToggleOperatorChannel(false) error = %v", err)
	}

	h, err := svc.CheckOperatorChannel(context.Background())
	if err != nil {
		t.Fatalf("CheckOperatorChannel() error = %v", err)
	}
	if h.IsAvailable || h.ErrorMessage != ReasonManuallyDisabled {
		t.Errorf("CheckOperatorChannel() = %+v, want manually disabled", h)
	}
}

// ========== CheckSystem / Status 测试 ==========

func TestCheckSystem_PingerFailure(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{configured: true}, func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	h, err := svc.CheckSystem(context.Background())
	if err != nil {
		t.Fatalf("CheckSystem() error = %v", err)
	}
	if h.IsAvailable || h.ErrorMessage != "connection refused" {
		t.Errorf("CheckSystem() = %+v, want unavailable with ping error", h)
	}
}

func TestStatus_ReturnsAllServices(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{configured: true}, nil)

	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(status) != 3 {
		t.Fatalf("Status() rows = %d, want 3", len(status))
	}
	names := map[string]bool{}
	for _, h := range status {
		names[h.Name] = true
	}
	for _, want := range []string{model.ServiceAI, model.ServiceOperatorChannel, model.ServiceSystem} {
		if !names[want] {
			t.Errorf("Status() missing service %s", want)
		}
	}
}
