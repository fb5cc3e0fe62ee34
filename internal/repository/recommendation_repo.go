package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
)

type RecommendationRepository struct {
	db *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

func (r *RecommendationRepository) Create(rec *model.Recommendation) error {
	return r.db.Create(rec).Error
}

func (r *RecommendationRepository) GetByID(id int64) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := r.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecentByUserID 获取用户最近的推荐，新的在前
func (r *RecommendationRepository) ListRecentByUserID(userID int64, limit int) ([]*model.Recommendation, error) {
	var recs []*model.Recommendation
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
