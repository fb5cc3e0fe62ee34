package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/repository"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrMissingSubject = errors.New("identity profile has no subject")
)

// ProfileFetcher 从身份提供方后台读取完整资料
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, externalID string) (*dto.Profile, error)
}

type UserService struct {
	userRepo       *repository.UserRepository
	entitlementSvc *EntitlementService
	fetcher        ProfileFetcher
	log            *logger.Logger
}

// NewUserService fetcher 为 nil 时不补全资料
func NewUserService(
	userRepo *repository.UserRepository,
	entitlementSvc *EntitlementService,
	fetcher ProfileFetcher,
	log *logger.Logger,
) *UserService {
	return &UserService{
		userRepo:       userRepo,
		entitlementSvc: entitlementSvc,
		fetcher:        fetcher,
		log:            log,
	}
}

// SyncProfile 根据身份提供方资料创建或更新本地用户。
// 令牌不带邮箱且本地也没有邮箱时，才向身份提供方后台查询
func (s *UserService) SyncProfile(ctx context.Context, profile *dto.Profile) (*model.User, error) {
	if profile == nil || profile.ExternalID == "" {
		return nil, ErrMissingSubject
	}

	merged := *profile
	if strings.TrimSpace(merged.Email) == "" && s.fetcher != nil {
		needsLookup, err := s.missingLocalEmail(merged.ExternalID)
		if err != nil {
			return nil, err
		}
		if needsLookup {
			s.completeProfile(ctx, &merged)
		}
	}

	user, err := s.userRepo.UpsertFromProfile(&merged)
	if err != nil {
		return nil, err
	}

	if want := strings.TrimSpace(merged.Email); want != "" && (user.Email == nil || *user.Email != want) {
		s.log.Warn("profile email belongs to another user, keeping stored email",
			"user_id", user.ID, "external_id", user.ExternalID)
	}
	return user, nil
}

func (s *UserService) missingLocalEmail(externalID string) (bool, error) {
	user, err := s.userRepo.GetByExternalID(externalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return user.Email == nil || *user.Email == "", nil
}

// completeProfile 查询失败只丢失邮箱，不影响本次请求
func (s *UserService) completeProfile(ctx context.Context, profile *dto.Profile) {
	fetched, err := s.fetcher.FetchProfile(ctx, profile.ExternalID)
	if err != nil {
		s.log.Warn("failed to fetch identity profile", "external_id", profile.ExternalID, "error", err)
		return
	}
	profile.Email = fetched.Email
	if profile.Name == "" {
		profile.Name = fetched.Name
	}
}

// GetByID 获取用户
func (s *UserService) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Me 获取当前用户及其套餐状态
func (s *UserService) Me(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status, err := s.entitlementSvc.GetStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.UserInfo{User: user, Billing: status}, nil
}
