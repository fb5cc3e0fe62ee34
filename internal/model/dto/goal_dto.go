package dto

import "time"

type CreateGoalRequest struct {
	Title       string     `json:"title" binding:"required,min=1,max=200"`
	Description string     `json:"description" binding:"max=2000"`
	Priority    int        `json:"priority" binding:"omitempty,min=1,max=5"`
	Deadline    *time.Time `json:"deadline"`
}

type UpdateGoalRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=2000"`
	Priority    *int       `json:"priority" binding:"omitempty,min=1,max=5"`
	Deadline    *time.Time `json:"deadline"`
}
