package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// healthRepositoryImpl 服务健康数据访问
type healthRepositoryImpl struct {
	db *gorm.DB
}

// NewHealthRepository 创建服务健康仓库
func NewHealthRepository(db *gorm.DB) HealthRepository {
	return &healthRepositoryImpl{db: db}
}

// GetOrInitialize 读取服务行，不存在时创建默认行。
// 集中在仓库层实现，调用方不做零散的存在性检查。
func (r *healthRepositoryImpl) GetOrInitialize(name string, defaultAvailable bool) (*model.ServiceHealth, error) {
	var h model.ServiceHealth
	err := r.db.Where(model.ServiceHealth{Name: name}).
		Attrs(model.ServiceHealth{
			Name:        name,
			IsAvailable: defaultAvailable,
			LastCheckAt: time.Now(),
		}).
		FirstOrCreate(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateFields 更新服务行字段
func (r *healthRepositoryImpl) UpdateFields(name string, fields map[string]interface{}) error {
	return r.db.Model(&model.ServiceHealth{}).Where("name = ?", name).Updates(fields).Error
}
