package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// presenceRepositoryImpl 在线状态数据访问
type presenceRepositoryImpl struct {
	db *gorm.DB
}

// NewPresenceRepository 创建在线状态仓库
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepositoryImpl{db: db}
}

// Get 获取客服在线状态
func (r *presenceRepositoryImpl) Get(operatorID string) (*model.OperatorPresence, error) {
	var p model.OperatorPresence
	err := r.db.Where("operator_id = ?", operatorID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Heartbeat 置为在线并刷新心跳；行不存在时创建。
// 心跳是单调递增的信号，last-write-wins 即可，无需条件更新。
func (r *presenceRepositoryImpl) Heartbeat(operatorID string, now time.Time) error {
	p := &model.OperatorPresence{
		OperatorID:      operatorID,
		IsOnline:        true,
		LastHeartbeat:   &now,
		AutoAwayMinutes: model.DefaultAutoAwayMinutes,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_online":      true,
			"last_heartbeat": now,
		}),
	}).Create(p).Error
}

// SetOnline 手动上线/下线；上线时同时刷新心跳作为活跃信号
func (r *presenceRepositoryImpl) SetOnline(operatorID string, online bool, now time.Time) error {
	assignments := map[string]interface{}{
		"is_online": online,
	}
	p := &model.OperatorPresence{
		OperatorID:      operatorID,
		IsOnline:        online,
		AutoAwayMinutes: model.DefaultAutoAwayMinutes,
	}
	if online {
		assignments["last_heartbeat"] = now
		p.LastHeartbeat = &now
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(p).Error
}

// ListAvailable 返回可接待的客服，按心跳时间、客服 ID 稳定排序
func (r *presenceRepositoryImpl) ListAvailable(roles []string, now time.Time) ([]*model.OperatorPresence, error) {
	var list []*model.OperatorPresence
	err := r.db.Model(&model.OperatorPresence{}).
		Joins("JOIN operators ON operators.id = operator_presences.operator_id").
		Where("operator_presences.is_online = ?", true).
		Where("operator_presences.last_heartbeat IS NOT NULL").
		Where("operator_presences.last_heartbeat + make_interval(mins => operator_presences.auto_away_minutes) >= ?", now).
		Where("operators.is_active = ? AND operators.role IN ?", true, roles).
		Order("operator_presences.last_heartbeat ASC, operator_presences.operator_id ASC").
		Find(&list).Error
	return list, err
}

// SweepStale 将心跳过期的在线客服置为离线。
// 过期判断放在 UPDATE 的 WHERE 中：清理过程中刚到达的心跳会使该行
// 不再命中谓词，不会被盲写覆盖。重复执行是幂等的。
func (r *presenceRepositoryImpl) SweepStale(now time.Time) (int64, error) {
	res := r.db.Model(&model.OperatorPresence{}).
		Where("is_online = ?", true).
		Where("last_heartbeat IS NOT NULL").
		Where("last_heartbeat + make_interval(mins => auto_away_minutes) < ?", now).
		Update("is_online", false)
	return res.RowsAffected, res.Error
}
