package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/repository"
)

var ErrGoalNotFound = errors.New("goal not found")

const defaultGoalPriority = 3

type GoalService struct {
	goalRepo *repository.GoalRepository
}

func NewGoalService(goalRepo *repository.GoalRepository) *GoalService {
	return &GoalService{goalRepo: goalRepo}
}

// List 获取用户的全部目标
func (s *GoalService) List(ctx context.Context, userID int64) ([]*model.Goal, error) {
	return s.goalRepo.ListByUserID(userID)
}

// Create 创建目标
func (s *GoalService) Create(ctx context.Context, userID int64, req *dto.CreateGoalRequest) (*model.Goal, error) {
	priority := req.Priority
	if priority == 0 {
		priority = defaultGoalPriority
	}

	goal := &model.Goal{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
		Deadline:    req.Deadline,
	}
	if err := s.goalRepo.Create(goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// Update 更新目标，只能修改自己的目标
func (s *GoalService) Update(ctx context.Context, userID, goalID int64, req *dto.UpdateGoalRequest) (*model.Goal, error) {
	goal, err := s.getOwned(userID, goalID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Priority != nil {
		fields["priority"] = *req.Priority
	}
	if req.Deadline != nil {
		fields["deadline"] = *req.Deadline
	}
	if len(fields) == 0 {
		return goal, nil
	}

	if err := s.goalRepo.UpdateFields(goal.ID, fields); err != nil {
		return nil, err
	}
	return s.goalRepo.GetByID(goal.ID)
}

// Delete 删除目标
func (s *GoalService) Delete(ctx context.Context, userID, goalID int64) error {
	goal, err := s.getOwned(userID, goalID)
	if err != nil {
		return err
	}
	return s.goalRepo.Delete(goal.ID)
}

// 其他用户的目标同样视为不存在
func (s *GoalService) getOwned(userID, goalID int64) (*model.Goal, error) {
	goal, err := s.goalRepo.GetByID(goalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	if goal.UserID != userID {
		return nil, ErrGoalNotFound
	}
	return goal, nil
}
