// Package health 维护 AI 客服与人工通道的可用性状态
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/repository"
	"github.com/dredbirozsolt/livechat/internal/service/ai"
)

// 健康检查失败原因
// 调用方需要能区分 AI 为什么不可用，而不只是知道它不可用。
const (
	ReasonManuallyDisabled   = "manually disabled"
	ReasonCredentialsMissing = "credentials missing"
)

// Service 服务健康监控
type Service struct {
	repo     repository.HealthRepository
	provider ai.Provider
	// pinger 数据库可达性检查，供 system 行使用；可为 nil
	pinger func(ctx context.Context) error
	now    func() time.Time
}

// NewService 创建服务健康监控
func NewService(repo repository.HealthRepository, provider ai.Provider, pinger func(ctx context.Context) error) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		pinger:   pinger,
		now:      time.Now,
	}
}

// CheckAI 检查 AI 客服可用性
// 检查顺序：手动开关 -> 凭证配置 -> 能力探测；任一否定即短路，
// 并把具体原因写入 error_message。结果持久化后返回。
func (s *Service) CheckAI(ctx context.Context) (*model.ServiceHealth, error) {
	h, err := s.repo.GetOrInitialize(model.ServiceAI, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load ai health: %w", err)
	}

	if h.ManuallyDisabled {
		return s.record(h, false, ReasonManuallyDisabled)
	}

	if s.provider == nil || !s.provider.Configured() {
		return s.record(h, false, ReasonCredentialsMissing)
	}

	if err := s.provider.Probe(ctx); err != nil {
		return s.record(h, false, err.Error())
	}

	return s.record(h, true, "")
}

// CheckOperatorChannel 检查人工客服通道可用性（仅手动开关）
func (s *Service) CheckOperatorChannel(ctx context.Context) (*model.ServiceHealth, error) {
	h, err := s.repo.GetOrInitialize(model.ServiceOperatorChannel, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load operator channel health: %w", err)
	}

	if h.ManuallyDisabled {
		return s.record(h, false, ReasonManuallyDisabled)
	}
	return s.record(h, true, "")
}

// CheckSystem 检查系统自身（数据库可达性）
func (s *Service) CheckSystem(ctx context.Context) (*model.ServiceHealth, error) {
	h, err := s.repo.GetOrInitialize(model.ServiceSystem, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load system health: %w", err)
	}

	if s.pinger != nil {
		if err := s.pinger(ctx); err != nil {
			return s.record(h, false, err.Error())
		}
	}
	return s.record(h, true, "")
}

// ToggleAI 手动启用/禁用 AI 客服；手动禁用永远优先于自动探测
func (s *Service) ToggleAI(ctx context.Context, enabled bool) (*model.ServiceHealth, error) {
	return s.toggle(model.ServiceAI, enabled)
}

// ToggleOperatorChannel 手动启用/禁用人工通道
func (s *Service) ToggleOperatorChannel(ctx context.Context, enabled bool) (*model.ServiceHealth, error) {
	return s.toggle(model.ServiceOperatorChannel, enabled)
}

// Status 返回全部被监控服务的当前状态
func (s *Service) Status(ctx context.Context) ([]*model.ServiceHealth, error) {
	aiHealth, err := s.CheckAI(ctx)
	if err != nil {
		return nil, err
	}
	chHealth, err := s.CheckOperatorChannel(ctx)
	if err != nil {
		return nil, err
	}
	sysHealth, err := s.CheckSystem(ctx)
	if err != nil {
		return nil, err
	}
	return []*model.ServiceHealth{aiHealth, chHealth, sysHealth}, nil
}

func (s *Service) toggle(name string, enabled bool) (*model.ServiceHealth, error) {
	h, err := s.repo.GetOrInitialize(name, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s health: %w", name, err)
	}

	h.ManuallyDisabled = !enabled
	fields := map[string]interface{}{
		"manually_disabled": h.ManuallyDisabled,
	}
	if !enabled {
		h.IsAvailable = false
		h.ErrorMessage = ReasonManuallyDisabled
		fields["is_available"] = false
		fields["error_message"] = ReasonManuallyDisabled
	}
	if err := s.repo.UpdateFields(name, fields); err != nil {
		return nil, fmt.Errorf("failed to toggle %s: %w", name, err)
	}
	return h, nil
}

// record 落盘检查结果并返回更新后的状态
func (s *Service) record(h *model.ServiceHealth, available bool, errorMessage string) (*model.ServiceHealth, error) {
	now := s.now()
	h.IsAvailable = available
	h.ErrorMessage = errorMessage
	h.LastCheckAt = now

	err := s.repo.UpdateFields(h.Name, map[string]interface{}{
		"is_available":  available,
		"error_message": errorMessage,
		"last_check_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s health: %w", h.Name, err)
	}
	return h, nil
}
