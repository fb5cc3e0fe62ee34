package dto

// NextActionRequest is the body of POST /next-action.
type NextActionRequest struct {
	AvailableMinutes int         `json:"availableMinutes" binding:"required,min=5,max=1440"`
	Energy           int         `json:"energy" binding:"required,min=1,max=5"`
	Context          string      `json:"context" binding:"required,oneof=HOME WORK OUTSIDE"`
	Goals            []GoalInput `json:"goals,omitempty" binding:"omitempty,dive"`
}

// GoalInput is a goal supplied inline with a next-action request. It mirrors
// the shape stored goals are rendered into for the prompt.
type GoalInput struct {
	ID          string  `json:"id" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Priority    int     `json:"priority"`
	Deadline    *string `json:"deadline"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	ActionID int64   `json:"actionId" binding:"required"`
	Type     string  `json:"type" binding:"required,oneof=DONE TOO_HARD NOT_RELEVANT RETRY"`
	Note     *string `json:"note" binding:"omitempty,max=2000"`
}

// ActionDraft is the structured object the model must return.
type ActionDraft struct {
	Title           string   `json:"title" validate:"required"`
	WhyThis         string   `json:"why_this" validate:"required"`
	Steps           []string `json:"steps" validate:"required,min=3,max=6,dive,required"`
	TimeMinutes     int      `json:"time_minutes" validate:"required,gt=0"`
	Difficulty      int      `json:"difficulty" validate:"required,min=1,max=5"`
	SuccessCriteria string   `json:"success_criteria" validate:"required"`
	FallbackIfStuck string   `json:"fallback_if_stuck" validate:"required"`
}
