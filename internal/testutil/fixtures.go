package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	email := fmt.Sprintf("test_%d@example.com", n)
	user := &model.User{
		ExternalID: fmt.Sprintf("user_test_%d", n),
		Email:      &email,
		Name:       fmt.Sprintf("Test User %d", n),
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithoutEmail 清空邮箱
func WithoutEmail() func(*model.User) {
	return func(u *model.User) {
		u.Email = nil
	}
}

// WithExternalID 设置身份提供方 ID
func WithExternalID(id string) func(*model.User) {
	return func(u *model.User) {
		u.ExternalID = id
	}
}

// WithStripeCustomer 设置 Stripe 客户 ID
func WithStripeCustomer(customerID string) func(*model.User) {
	return func(u *model.User) {
		u.StripeCustomerID = &customerID
	}
}

// TestEntitlement 创建测试权益记录
func TestEntitlement(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Entitlement)) *model.Entitlement {
	t.Helper()

	ent := &model.Entitlement{
		UserID: userID,
		Plan:   model.PlanFree,
		Status: model.StatusActive,
	}

	for _, opt := range opts {
		opt(ent)
	}

	if err := db.Create(ent).Error; err != nil {
		t.Fatalf("Failed to create test entitlement: %v", err)
	}

	return ent
}

// WithPlan 设置套餐
func WithPlan(plan model.Plan) func(*model.Entitlement) {
	return func(e *model.Entitlement) {
		e.Plan = plan
	}
}

// WithUsage 设置某天的使用次数
func WithUsage(count int, day time.Time) func(*model.Entitlement) {
	return func(e *model.Entitlement) {
		e.UsageCount = count
		e.UsageDay = day.Format("2006-01-02")
		e.LastUsageAt = &day
	}
}

// TestGoal 创建测试目标
func TestGoal(t *testing.T, db *gorm.DB, userID int64, title string) *model.Goal {
	t.Helper()

	goal := &model.Goal{
		UserID:      userID,
		Title:       title,
		Description: title + " description",
		Priority:    3,
	}

	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("Failed to create test goal: %v", err)
	}

	return goal
}

// TestRecommendation 创建测试推荐
func TestRecommendation(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Recommendation)) *model.Recommendation {
	t.Helper()

	rec := &model.Recommendation{
		UserID:          userID,
		Title:           fmt.Sprintf("Test Action %d", nextSeq()),
		Rationale:       "Because it moves the goal forward",
		Steps:           datatypes.JSONSlice[string]{"Open the doc", "Write the outline", "Share it"},
		TimeMinutes:     25,
		Difficulty:      2,
		SuccessCriteria: "Outline shared",
		Fallback:        "Write one bullet",
		RawResponse:     datatypes.JSON(`{}`),
		Model:           "gpt-3.5-turbo",
		Attempts:        1,
	}

	for _, opt := range opts {
		opt(rec)
	}

	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to create test recommendation: %v", err)
	}

	return rec
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(ts time.Time) func(*model.Recommendation) {
	return func(r *model.Recommendation) {
		r.CreatedAt = ts
	}
}
