package model

import (
	"time"

	"gorm.io/datatypes"
)

// Recommendation is a generated "next action". Rows are never updated.
type Recommendation struct {
	ID              int64                       `gorm:"primaryKey" json:"id"`
	UserID          int64                       `gorm:"not null;index" json:"userId"`
	GoalID          *int64                      `gorm:"index" json:"goalId"`
	Title           string                      `gorm:"size:300;not null" json:"title"`
	Rationale       string                      `gorm:"type:text" json:"whyThis"`
	Steps           datatypes.JSONSlice[string] `json:"steps"`
	TimeMinutes     int                         `gorm:"not null" json:"timeMinutes"`
	Difficulty      int                         `gorm:"not null" json:"difficulty"`
	SuccessCriteria string                      `gorm:"type:text" json:"successCriteria"`
	Fallback        string                      `gorm:"type:text" json:"fallbackIfStuck"`
	RawResponse     datatypes.JSON              `json:"rawJson"`
	Model           string                      `gorm:"size:100" json:"modelUsed"`
	Attempts        int                         `gorm:"not null;default:1" json:"attempts"`
	CreatedAt       time.Time                   `gorm:"index" json:"createdAt"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}
