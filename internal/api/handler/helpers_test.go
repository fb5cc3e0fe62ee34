package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/api/middleware"
	"github.com/qs3c/nextaction_server/internal/pkg/billing"
	"github.com/qs3c/nextaction_server/internal/pkg/llm"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/repository"
	"github.com/qs3c/nextaction_server/internal/service"
	"github.com/qs3c/nextaction_server/internal/testutil"
)

const testWebhookSecret = "whsec_test_secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testContext struct {
	DB          *gorm.DB
	LLM         *fakeLLM
	Provider    *fakeProvider
	Users       *service.UserService
	Entitlement *service.EntitlementService
	Goals       *service.GoalService
	Recs        *service.RecommendationService
	Billing     *service.BillingService
}

func setupTestContext(t *testing.T) (*testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{Entitlement: config.EntitlementConfig{FreeDailyLimit: 5}}

	userRepo := repository.NewUserRepository(db)
	entRepo := repository.NewEntitlementRepository(db)
	goalRepo := repository.NewGoalRepository(db)

	fake := &fakeLLM{}
	provider := newFakeProvider()

	entSvc := service.NewEntitlementService(entRepo, cfg)
	ctx := &testContext{
		DB:          db,
		LLM:         fake,
		Provider:    provider,
		Users:       service.NewUserService(userRepo, entSvc, nil, logger.Nop()),
		Entitlement: entSvc,
		Goals:       service.NewGoalService(goalRepo),
		Recs: service.NewRecommendationService(
			repository.NewRecommendationRepository(db),
			goalRepo,
			repository.NewFeedbackRepository(db),
			fake,
			logger.Nop(),
		),
		Billing: service.NewBillingService(userRepo, entRepo, provider, nil, logger.Nop()),
	}

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return ctx, cleanup
}

func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

// fakeLLM 依次返回预设的输出
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (f *fakeLLM) script(replies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.replies) == 0 {
		return "", errors.New("fake llm: no scripted reply")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeLLM) Model() string { return "fake-model" }

// fakeProvider 支付服务替身，webhook 签名按真实算法校验
type fakeProvider struct {
	customersByMail map[string]string
	checkoutCalls   []billing.CheckoutParams
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{customersByMail: map[string]string{}}
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error) {
	f.checkoutCalls = append(f.checkoutCalls, p)
	return "https://checkout.test/session", nil
}

func (f *fakeProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	return "https://portal.test/" + customerID, nil
}

func (f *fakeProvider) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	return f.customersByMail[email], nil
}

func (f *fakeProvider) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	return "", nil
}

func (f *fakeProvider) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, testWebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
