// Package retirement 实现会话退休清理
// 定期把长期不活跃或被遗弃的会话软删除并匿名化；
// 可选的第二阶段物理删除长期匿名化的记录。
package retirement

import (
	"context"
	"fmt"
	"time"

	"github.com/dredbirozsolt/livechat/internal/config"
	"github.com/dredbirozsolt/livechat/internal/repository"
	"github.com/dredbirozsolt/livechat/internal/service/types"
)

// Options 单次清理的参数
type Options struct {
	// DryRun 只报告候选集合，不做任何变更
	DryRun bool
	// Now 覆盖清理的参考时间；零值时取当前时间
	Now time.Time
}

// Report 单次清理的结果
// 统计量作为返回值交给调用方，管道自身不持有可变状态。
type Report struct {
	DryRun       bool      `json:"dry_run"`
	StartedAt    time.Time `json:"started_at"`
	Candidates   int       `json:"candidates"`
	CandidateIDs []string  `json:"candidate_ids,omitempty"`
	Retired      int       `json:"retired"`
	// Skipped 资格复查未通过：扫描后收到了新消息，或已被并发清理退休
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// HardDeleteReport 物理删除阶段的结果
type HardDeleteReport struct {
	StartedAt time.Time `json:"started_at"`
	Cutoff    time.Time `json:"cutoff"`
	Purged    int64     `json:"purged"`
}

// Service 退休清理管道
type Service struct {
	conversations repository.ConversationRepository
	cfg           *config.ChatConfig
	now           func() time.Time
}

// NewService 创建退休清理管道
func NewService(conversations repository.ConversationRepository, cfg *config.ChatConfig) *Service {
	return &Service{
		conversations: conversations,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Sweep 执行一次退休清理
// 候选条件：未退休，且最后一条消息早于 inactivityDays，
// 或零消息且创建早于 abandonedDays。
// 每个候选单独处理：逐条带资格复查的原子更新（软删除 + 匿名化
// 在同一条 UPDATE 中），单条失败计入汇总而不中断整次清理。
func (s *Service) Sweep(ctx context.Context, opts Options) (*Report, error) {
	now := opts.Now
	if now.IsZero() {
		now = s.now()
	}

	inactiveBefore := now.AddDate(0, 0, -s.cfg.InactivityDays)
	abandonedBefore := now.AddDate(0, 0, -s.cfg.AbandonedDays)

	report := &Report{
		DryRun:    opts.DryRun,
		StartedAt: now,
	}

	candidates, err := s.conversations.FindRetirementCandidates(inactiveBefore, abandonedBefore, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan retirement candidates: %w", err)
	}

	report.Candidates = len(candidates)
	for _, conv := range candidates {
		report.CandidateIDs = append(report.CandidateIDs, conv.ID)
	}

	if opts.DryRun {
		return report, nil
	}

	for _, conv := range candidates {
		ok, err := s.conversations.RetireIfEligible(conv.ID, inactiveBefore, abandonedBefore, now)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", conv.ID, err))
			continue
		}
		if ok {
			report.Retired++
		} else {
			report.Skipped++
		}
	}

	return report, nil
}

// HardDelete 物理删除匿名化超过 hardDeleteAfterDays 的会话
// 必须显式启用；删除谓词限定 anonymized = true，从结构上排除
// 未匿名化的记录被触及的可能。
func (s *Service) HardDelete(ctx context.Context, opts Options) (*HardDeleteReport, error) {
	if !s.cfg.HardDeleteEnabled {
		return nil, types.InvalidState("hard delete is disabled")
	}

	now := opts.Now
	if now.IsZero() {
		now = s.now()
	}
	cutoff := now.AddDate(0, 0, -s.cfg.HardDeleteAfterDays)

	purged, err := s.conversations.DeleteAnonymizedBefore(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to hard delete conversations: %w", err)
	}

	return &HardDeleteReport{
		StartedAt: now,
		Cutoff:    cutoff,
		Purged:    purged,
	}, nil
}
