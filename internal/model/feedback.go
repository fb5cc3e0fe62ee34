package model

import (
	"time"
)

type FeedbackType string

const (
	FeedbackDone        FeedbackType = "DONE"
	FeedbackTooHard     FeedbackType = "TOO_HARD"
	FeedbackNotRelevant FeedbackType = "NOT_RELEVANT"
	FeedbackRetry       FeedbackType = "RETRY"
)

type Feedback struct {
	ID               int64        `gorm:"primaryKey" json:"id"`
	UserID           int64        `gorm:"not null;index" json:"userId"`
	RecommendationID int64        `gorm:"not null;index" json:"actionId"`
	Type             FeedbackType `gorm:"size:20;not null" json:"type"`
	Note             *string      `gorm:"type:text" json:"note,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

func (Feedback) TableName() string {
	return "feedback"
}
