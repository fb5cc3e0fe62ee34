package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
)

type GoalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

func (r *GoalRepository) Create(goal *model.Goal) error {
	return r.db.Create(goal).Error
}

func (r *GoalRepository) GetByID(id int64) (*model.Goal, error) {
	var goal model.Goal
	err := r.db.Where("id = ?", id).First(&goal).Error
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// ListByUserID 按优先级和创建时间列出用户的全部目标
func (r *GoalRepository) ListByUserID(userID int64) ([]*model.Goal, error) {
	var goals []*model.Goal
	err := r.db.Where("user_id = ?", userID).
		Order("priority ASC").
		Order("created_at ASC").
		Find(&goals).Error
	return goals, err
}

func (r *GoalRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Goal{}).Where("id = ?", id).Updates(fields).Error
}

func (r *GoalRepository) Delete(id int64) error {
	return r.db.Delete(&model.Goal{}, id).Error
}
