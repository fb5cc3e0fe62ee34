package service

import (
	"context"
	"time"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/metrics"
	"github.com/qs3c/nextaction_server/internal/repository"
)

const (
	defaultFreeDailyLimit = 5
	usageDayLayout        = "2006-01-02"
)

type EntitlementService struct {
	entRepo *repository.EntitlementRepository
	cfg     *config.Config
	now     func() time.Time
}

func NewEntitlementService(entRepo *repository.EntitlementRepository, cfg *config.Config) *EntitlementService {
	return &EntitlementService{
		entRepo: entRepo,
		cfg:     cfg,
		now:     time.Now,
	}
}

// FreeDailyLimit FREE 套餐每日可用次数
func (s *EntitlementService) FreeDailyLimit() int {
	if s.cfg.Entitlement.FreeDailyLimit > 0 {
		return s.cfg.Entitlement.FreeDailyLimit
	}
	return defaultFreeDailyLimit
}

// today 按服务器本地时区计算当天
func (s *EntitlementService) today() string {
	return s.now().Local().Format(usageDayLayout)
}

// GetStatus 获取用户当前套餐与用量。跨天时只在返回值里视为 0，不回写存储
func (s *EntitlementService) GetStatus(ctx context.Context, userID int64) (*dto.EntitlementStatus, error) {
	ent, err := s.entRepo.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}
	return s.statusOf(ent), nil
}

func (s *EntitlementService) statusOf(ent *model.Entitlement) *dto.EntitlementStatus {
	limit := s.FreeDailyLimit()

	usage := ent.UsageCount
	if ent.UsageDay != s.today() {
		usage = 0
	}

	status := &dto.EntitlementStatus{
		Plan:       ent.Plan,
		UsageCount: usage,
		Limit:      limit,
	}
	if ent.Plan == model.PlanPro {
		status.Remaining = dto.UnlimitedRemaining()
	} else {
		status.Remaining = dto.LimitedRemaining(limit - usage)
	}
	return status
}

// CheckAndIncrement 检查是否允许一次生成，允许时记一次用量。
// FREE 用户的计数通过单条条件更新完成，并发请求不会超出上限。
func (s *EntitlementService) CheckAndIncrement(ctx context.Context, userID int64) (bool, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return false, err
	}

	now := s.now()
	day := now.Local().Format(usageDayLayout)

	if status.Plan == model.PlanPro {
		if err := s.entRepo.TouchUsage(userID, day, now); err != nil {
			return false, err
		}
		metrics.AdmissionsTotal.WithLabelValues(string(model.PlanPro), "admitted").Inc()
		return true, nil
	}

	if status.Remaining.Exhausted() {
		metrics.AdmissionsTotal.WithLabelValues(string(model.PlanFree), "denied").Inc()
		return false, nil
	}

	ok, err := s.entRepo.TryIncrementFree(userID, day, now, s.FreeDailyLimit())
	if err != nil {
		return false, err
	}
	result := "denied"
	if ok {
		result = "admitted"
	}
	metrics.AdmissionsTotal.WithLabelValues(string(model.PlanFree), result).Inc()
	return ok, nil
}
