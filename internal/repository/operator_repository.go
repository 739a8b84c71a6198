package repository

import (
	"gorm.io/gorm"

	"github.com/dredbirozsolt/livechat/internal/model"
)

// operatorRepositoryImpl 客服账号数据访问
type operatorRepositoryImpl struct {
	db *gorm.DB
}

// NewOperatorRepository 创建客服账号仓库
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepositoryImpl{db: db}
}

// Create 创建客服账号
func (r *operatorRepositoryImpl) Create(op *model.Operator) error {
	return r.db.Create(op).Error
}

// GetByID 按 ID 获取客服
func (r *operatorRepositoryImpl) GetByID(id string) (*model.Operator, error) {
	var op model.Operator
	err := r.db.Where("id = ?", id).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetByEmail 按邮箱获取客服
func (r *operatorRepositoryImpl) GetByEmail(email string) (*model.Operator, error) {
	var op model.Operator
	err := r.db.Where("email = ?", email).First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// List 列出客服账号
func (r *operatorRepositoryImpl) List(offset, limit int) ([]*model.Operator, int64, error) {
	var total int64
	if err := r.db.Model(&model.Operator{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ops []*model.Operator
	err := r.db.Order("created_at ASC").Offset(offset).Limit(limit).Find(&ops).Error
	return ops, total, err
}
