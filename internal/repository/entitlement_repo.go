package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/nextaction_server/internal/model"
)

type EntitlementRepository struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) GetByUserID(userID int64) (*model.Entitlement, error) {
	var ent model.Entitlement
	err := r.db.Where("user_id = ?", userID).First(&ent).Error
	if err != nil {
		return nil, err
	}
	return &ent, nil
}

// GetOrCreate 获取用户权益，不存在时创建 FREE/ACTIVE 默认记录
func (r *EntitlementRepository) GetOrCreate(userID int64) (*model.Entitlement, error) {
	ent := &model.Entitlement{
		UserID: userID,
		Plan:   model.PlanFree,
		Status: model.StatusActive,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(ent).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserID(userID)
}

// TryIncrementFree 原子地为 FREE 用户记一次使用：跨天则重置为 1，
// 当天未达上限则加 1。返回 false 表示已达上限或用户不是 FREE。
func (r *EntitlementRepository) TryIncrementFree(userID int64, day string, now time.Time, limit int) (bool, error) {
	result := r.db.Model(&model.Entitlement{}).
		Where("user_id = ? AND plan = ?", userID, model.PlanFree).
		Where("(usage_day IS NULL OR usage_day <> ? OR usage_count < ?)", day, limit).
		// gorm 按列名排序生成 SET，usage_count 先于 usage_day 赋值（MySQL 从左到右求值）
		Updates(map[string]interface{}{
			"usage_count":   gorm.Expr("CASE WHEN usage_day = ? THEN usage_count + 1 ELSE 1 END", day),
			"usage_day":     day,
			"last_usage_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TouchUsage 只刷新最近使用时间，不修改计数
func (r *EntitlementRepository) TouchUsage(userID int64, day string, now time.Time) error {
	return r.db.Model(&model.Entitlement{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"usage_day":     day,
			"last_usage_at": now,
		}).Error
}

// UpsertPlan 设置套餐状态，只写 plan/status/period_end，不动使用计数
func (r *EntitlementRepository) UpsertPlan(userID int64, plan model.Plan, status model.EntitlementStatus, periodEnd *time.Time) error {
	ent := &model.Entitlement{
		UserID:    userID,
		Plan:      plan,
		Status:    status,
		PeriodEnd: periodEnd,
	}
	columns := []string{"plan", "status", "updated_at"}
	if periodEnd != nil {
		columns = append(columns, "period_end")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(ent).Error
}
