package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
)

type FeedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(fb *model.Feedback) error {
	return r.db.Create(fb).Error
}

func (r *FeedbackRepository) CountByRecommendationID(recommendationID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Feedback{}).
		Where("recommendation_id = ?", recommendationID).
		Count(&count).Error
	return count, err
}
