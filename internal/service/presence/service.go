// Package presence 维护客服在线状态
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
	"github.com/dredbirozsolt/livechat/internal/repository"
	"github.com/dredbirozsolt/livechat/internal/service/types"
)

// Service 在线状态追踪
type Service struct {
	presence  repository.PresenceRepository
	operators repository.OperatorRepository
	now       func() time.Time
}

// NewService 创建在线状态追踪
func NewService(presence repository.PresenceRepository, operators repository.OperatorRepository) *Service {
	return &Service{
		presence:  presence,
		operators: operators,
		now:       time.Now,
	}
}

// Heartbeat 客服心跳：置为在线并刷新心跳时间
func (s *Service) Heartbeat(ctx context.Context, operatorID string) error {
	if err := s.requireOperator(operatorID); err != nil {
		return err
	}
	if err := s.presence.Heartbeat(operatorID, s.now()); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// SetOnline 手动上线
func (s *Service) SetOnline(ctx context.Context, operatorID string) error {
	return s.setOnline(operatorID, true)
}

// SetOffline 手动下线
func (s *Service) SetOffline(ctx context.Context, operatorID string) error {
	return s.setOnline(operatorID, false)
}

// Get 获取单个客服的在线状态
func (s *Service) Get(ctx context.Context, operatorID string) (*model.OperatorPresence, error) {
	p, err := s.presence.Get(operatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("presence not found for operator %s", operatorID)
		}
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}
	return p, nil
}

// ListAvailable 返回当前可接待升级会话的客服：
// 在线、心跳在 auto-away 窗口内、账号激活且持授权角色，稳定排序。
func (s *Service) ListAvailable(ctx context.Context) ([]*model.OperatorPresence, error) {
	list, err := s.presence.ListAvailable(model.EscalationRoles, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list available operators: %w", err)
	}
	return list, nil
}

// SweepStale 将心跳超过各自 auto-away 阈值的在线客服置为离线。
// 幂等，可与心跳并发运行；返回被置为离线的数量。
func (s *Service) SweepStale(ctx context.Context) (int64, error) {
	changed, err := s.presence.SweepStale(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale presence: %w", err)
	}
	return changed, nil
}

func (s *Service) setOnline(operatorID string, online bool) error {
	if err := s.requireOperator(operatorID); err != nil {
		return err
	}
	if err := s.presence.SetOnline(operatorID, online, s.now()); err != nil {
		return fmt.Errorf("failed to set online state: %w", err)
	}
	return nil
}

// requireOperator 确认客服账号存在
func (s *Service) requireOperator(operatorID string) error {
	_, err := s.operators.GetByID(operatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFound("operator %s not found", operatorID)
		}
		return fmt.Errorf("failed to load operator: %w", err)
	}
	return nil
}
