package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stripe/stripe-go/v81"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/pkg/billing"
	"github.com/qs3c/nextaction_server/internal/pkg/dedupe"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/metrics"
	"github.com/qs3c/nextaction_server/internal/repository"
)

var (
	ErrNoBillingCustomer = errors.New("no billing customer found for this user")
	ErrInvalidEvent      = errors.New("invalid billing event payload")
	ErrInvalidSignature  = errors.New("invalid billing event signature")
)

const (
	processedEventPrefix = "billing:event:"
	processedEventTTL    = 72 * time.Hour
)

type BillingService struct {
	userRepo *repository.UserRepository
	entRepo  *repository.EntitlementRepository
	provider billing.Provider
	events   *dedupe.Store
	log      *logger.Logger
}

// NewBillingService rdb 可以为 nil，此时不做事件去重
func NewBillingService(
	userRepo *repository.UserRepository,
	entRepo *repository.EntitlementRepository,
	provider billing.Provider,
	rdb *redis.Client,
	log *logger.Logger,
) *BillingService {
	s := &BillingService{
		userRepo: userRepo,
		entRepo:  entRepo,
		provider: provider,
		log:      log,
	}
	if rdb != nil {
		s.events = dedupe.NewStore(rdb, processedEventPrefix, processedEventTTL)
	}
	return s
}

// CreateCheckoutSession 创建订阅结账页面
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID int64) (string, error) {
	user, err := s.getUser(userID)
	if err != nil {
		return "", err
	}

	params := billing.CheckoutParams{UserID: user.ID}
	if user.StripeCustomerID != nil {
		params.CustomerID = *user.StripeCustomerID
	}
	if user.Email != nil {
		params.Email = *user.Email
	}
	return s.provider.CreateCheckoutSession(ctx, params)
}

// CreatePortalSession 创建订阅管理页面，优先使用已保存的客户 ID，否则按邮箱查找
func (s *BillingService) CreatePortalSession(ctx context.Context, userID int64) (string, error) {
	user, err := s.getUser(userID)
	if err != nil {
		return "", err
	}

	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" && user.Email != nil && *user.Email != "" {
		customerID, err = s.provider.FindCustomerIDByEmail(ctx, *user.Email)
		if err != nil {
			return "", err
		}
		if customerID != "" {
			s.rememberCustomer(user.ID, customerID)
		}
	}
	if customerID == "" {
		return "", ErrNoBillingCustomer
	}

	return s.provider.CreatePortalSession(ctx, customerID)
}

// ParseEvent 校验 webhook 签名并解析事件。未配置签名密钥时原样返回 billing.ErrNotConfigured
func (s *BillingService) ParseEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := s.provider.ConstructEvent(payload, sigHeader)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return stripe.Event{}, err
		}
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// HandleEvent 把订阅事件同步到用户权益。所有写入都是"设置为某值"，重复投递结果相同
func (s *BillingService) HandleEvent(ctx context.Context, event stripe.Event) error {
	eventType := string(event.Type)

	if event.ID != "" {
		fresh, err := s.claimEvent(ctx, event.ID)
		if err != nil {
			s.log.Warn("billing event dedupe unavailable", "event_id", event.ID, "error", err)
		} else if !fresh {
			metrics.WebhookEventsTotal.WithLabelValues(eventType, "duplicate").Inc()
			s.log.Info("billing event already processed", "event_id", event.ID, "type", eventType)
			return nil
		}
	}

	result, err := s.dispatch(ctx, event)
	if err != nil {
		s.releaseEvent(ctx, event.ID)
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}
	metrics.WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
	return nil
}

func (s *BillingService) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	if event.Data == nil {
		return "", ErrInvalidEvent
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return s.onCheckoutCompleted(ctx, &sess)

	case stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return s.onSubscriptionUpdated(ctx, &sub)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return s.onSubscriptionCanceled(ctx, &sub)

	default:
		return "ignored", nil
	}
}

func (s *BillingService) onCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) (string, error) {
	ref := sess.Metadata["userId"]
	if ref == "" {
		ref = sess.ClientReferenceID
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil {
		s.log.Warn("checkout completed without a usable user reference", "session_id", sess.ID, "ref", ref)
		return "dropped", nil
	}

	user, err := s.userRepo.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("checkout completed for unknown user", "session_id", sess.ID, "user_id", userID)
		return "dropped", nil
	}
	if err != nil {
		return "", err
	}

	if sess.Customer != nil && sess.Customer.ID != "" {
		if user.StripeCustomerID == nil || *user.StripeCustomerID != sess.Customer.ID {
			s.rememberCustomer(user.ID, sess.Customer.ID)
		}
	}

	if err := s.entRepo.UpsertPlan(user.ID, model.PlanPro, model.StatusActive, nil); err != nil {
		return "", err
	}
	s.log.Info("subscription activated", "user_id", user.ID, "session_id", sess.ID)
	return "processed", nil
}

func (s *BillingService) onSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) (string, error) {
	user, err := s.resolveCustomer(ctx, sub.Customer)
	if err != nil {
		return "", err
	}
	if user == nil {
		s.log.Warn("subscription update for unresolvable customer", "subscription_id", sub.ID)
		return "dropped", nil
	}

	plan, status := model.PlanFree, model.StatusInactive
	if sub.Status == stripe.SubscriptionStatusActive {
		plan, status = model.PlanPro, model.StatusActive
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		periodEnd = &t
	}

	if err := s.entRepo.UpsertPlan(user.ID, plan, status, periodEnd); err != nil {
		return "", err
	}
	s.log.Info("subscription updated", "user_id", user.ID, "plan", plan, "status", status)
	return "processed", nil
}

func (s *BillingService) onSubscriptionCanceled(ctx context.Context, sub *stripe.Subscription) (string, error) {
	user, err := s.resolveCustomer(ctx, sub.Customer)
	if err != nil {
		return "", err
	}
	if user == nil {
		s.log.Warn("subscription cancel for unresolvable customer", "subscription_id", sub.ID)
		return "dropped", nil
	}

	if err := s.entRepo.UpsertPlan(user.ID, model.PlanFree, model.StatusInactive, nil); err != nil {
		return "", err
	}
	s.log.Info("subscription canceled", "user_id", user.ID)
	return "processed", nil
}

// resolveCustomer 先按已保存的客户 ID 查找用户，再按客户邮箱匹配。找不到时返回 (nil, nil)
func (s *BillingService) resolveCustomer(ctx context.Context, cust *stripe.Customer) (*model.User, error) {
	if cust == nil || cust.ID == "" {
		return nil, nil
	}

	user, err := s.userRepo.GetByStripeCustomerID(cust.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := cust.Email
	if email == "" {
		email, err = s.provider.GetCustomerEmail(ctx, cust.ID)
		if err != nil {
			return nil, err
		}
	}
	if email == "" {
		return nil, nil
	}

	user, err = s.userRepo.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if user.StripeCustomerID == nil {
		s.rememberCustomer(user.ID, cust.ID)
	}
	return user, nil
}

// rememberCustomer 保存客户 ID，失败只记日志
func (s *BillingService) rememberCustomer(userID int64, customerID string) {
	if err := s.userRepo.SetStripeCustomerID(userID, customerID); err != nil {
		s.log.Warn("failed to store billing customer", "user_id", userID, "customer_id", customerID, "error", err)
	}
}

// claimEvent 返回 true 表示该事件第一次出现
func (s *BillingService) claimEvent(ctx context.Context, eventID string) (bool, error) {
	if s.events == nil {
		return true, nil
	}
	return s.events.Claim(ctx, eventID)
}

func (s *BillingService) releaseEvent(ctx context.Context, eventID string) {
	if s.events == nil || eventID == "" {
		return
	}
	if err := s.events.Release(ctx, eventID); err != nil {
		s.log.Warn("failed to release billing event", "event_id", eventID, "error", err)
	}
}

func (s *BillingService) getUser(userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
