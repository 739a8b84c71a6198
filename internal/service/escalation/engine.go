// Package escalation 实现新会话的归属仲裁
// 纯决策逻辑，不触碰存储，便于穷举测试。
package escalation

import (
	"sort"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// Decision 新会话的初始归属
type Decision struct {
	Status         string
	FallbackReason string
	// Operator 升级到人工时选中的客服；其余情况为 nil
	Operator *model.OperatorPresence
}

// Decide 根据健康信号决定新会话的初始状态：
//
//	AI 可用                -> active / none
//	AI 不可用、人工可用     -> escalated / ai_unavailable
//	AI 不可用、人工不可用   -> offline / both_unavailable
func Decide(aiAvailable, operatorsAvailable bool) (status, fallbackReason string) {
	switch {
	case aiAvailable:
		return model.StatusActive, model.FallbackNone
	case operatorsAvailable:
		return model.StatusEscalated, model.FallbackAIUnavailable
	default:
		return model.StatusOffline, model.FallbackBothUnavailable
	}
}

// PickOperator 从候选中确定性地选出一名客服：
// 心跳最早者优先，心跳相同时取客服 ID 最小者。
// 不做负载均衡，只保证确定性和可用性正确。
func PickOperator(candidates []*model.OperatorPresence) *model.OperatorPresence {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]*model.OperatorPresence, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.LastHeartbeat == nil && b.LastHeartbeat == nil:
			return a.OperatorID < b.OperatorID
		case a.LastHeartbeat == nil:
			return false
		case b.LastHeartbeat == nil:
			return true
		case a.LastHeartbeat.Equal(*b.LastHeartbeat):
			return a.OperatorID < b.OperatorID
		default:
			return a.LastHeartbeat.Before(*b.LastHeartbeat)
		}
	})
	return sorted[0]
}

// Run 完整仲裁：先查表，再在需要升级时选人。
// 候选列表为空时 operatorsAvailable 视为 false，两个输入保持一致。
func Run(aiAvailable bool, candidates []*model.OperatorPresence) Decision {
	status, reason := Decide(aiAvailable, len(candidates) > 0)
	d := Decision{Status: status, FallbackReason: reason}
	if status == model.StatusEscalated {
		d.Operator = PickOperator(candidates)
	}
	return d
}
