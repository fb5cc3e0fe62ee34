package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/api/handler"
	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/billing"
	"github.com/qs3c/nextaction_server/internal/pkg/llm"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/response"
	"github.com/qs3c/nextaction_server/internal/repository"
	"github.com/qs3c/nextaction_server/internal/service"
	"github.com/qs3c/nextaction_server/internal/testutil"
)

const draft = `{"title":"Write the intro","why_this":"Smallest next step","steps":["Open doc","Write two lines","Save"],` +
	`"time_minutes":10,"difficulty":1,"success_criteria":"Intro saved","fallback_if_stuck":"Write one line"}`

func init() {
	gin.SetMode(gin.TestMode)
}

type staticAuthenticator struct{}

func (staticAuthenticator) Authenticate(_ context.Context, token string) (*dto.Profile, error) {
	if token != "valid-token" {
		return nil, errors.New("bad token")
	}
	return &dto.Profile{ExternalID: "user_router", Email: "router@example.com"}, nil
}

type alwaysValidLLM struct{}

func (alwaysValidLLM) CompleteJSON(context.Context, []llm.Message) (string, error) { return draft, nil }
func (alwaysValidLLM) Model() string                                             { return "fake-model" }

type noBilling struct{}

func (noBilling) CreateCheckoutSession(context.Context, billing.CheckoutParams) (string, error) {
	return "https://checkout.test", nil
}
func (noBilling) CreatePortalSession(context.Context, string) (string, error) {
	return "https://portal.test", nil
}
func (noBilling) FindCustomerIDByEmail(context.Context, string) (string, error) { return "", nil }
func (noBilling) GetCustomerEmail(context.Context, string) (string, error)      { return "", nil }
func (noBilling) ConstructEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("bad signature")
}

func setupEngine(t *testing.T) *gin.Engine {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		Entitlement: config.EntitlementConfig{FreeDailyLimit: 5},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
	log := logger.Nop()

	userRepo := repository.NewUserRepository(db)
	entRepo := repository.NewEntitlementRepository(db)
	goalRepo := repository.NewGoalRepository(db)

	entSvc := service.NewEntitlementService(entRepo, cfg)
	userSvc := service.NewUserService(userRepo, entSvc, nil, log)
	recSvc := service.NewRecommendationService(repository.NewRecommendationRepository(db), goalRepo,
		repository.NewFeedbackRepository(db), alwaysValidLLM{}, log)
	billingSvc := service.NewBillingService(userRepo, entRepo, noBilling{}, nil, log)

	router := NewRouter(
		handler.NewUserHandler(userSvc),
		handler.NewActionHandler(recSvc, log),
		handler.NewGoalHandler(service.NewGoalService(goalRepo)),
		handler.NewBillingHandler(billingSvc, entSvc, log),
		staticAuthenticator{},
		userSvc,
		entSvc,
		log,
		cfg,
	)
	return router.Setup()
}

func call(engine *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	engine := setupEngine(t)

	w := call(engine, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = call(engine, "GET", "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	w = call(engine, "POST", "/billing/webhook", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ProtectedEndpointsRequireToken(t *testing.T) {
	engine := setupEngine(t)

	for _, route := range [][2]string{
		{"GET", "/me"},
		{"POST", "/next-action"},
		{"GET", "/history"},
		{"POST", "/feedback"},
		{"GET", "/goals"},
		{"GET", "/billing/status"},
		{"POST", "/billing/create-checkout-session"},
		{"POST", "/billing/create-portal-session"},
	} {
		w := call(engine, route[0], route[1], "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route[0], route[1])

		w = call(engine, route[0], route[1], "forged", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route[0], route[1])
	}
}

func TestRouter_FreeUserFlow(t *testing.T) {
	engine := setupEngine(t)
	body := `{"availableMinutes":20,"energy":2,"context":"HOME"}`

	w := call(engine, "GET", "/me", "valid-token", "")
	require.Equal(t, http.StatusOK, w.Code)

	for i := 0; i < 5; i++ {
		w = call(engine, "POST", "/next-action", "valid-token", body)
		require.Equal(t, http.StatusOK, w.Code, "request %d: %s", i+1, w.Body.String())
	}

	w = call(engine, "POST", "/next-action", "valid-token", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	var errBody response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	assert.Equal(t, response.CodeQuotaExceeded, errBody.Code)

	w = call(engine, "GET", "/billing/status", "valid-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.EntitlementStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, model.PlanFree, status.Plan)
	assert.Equal(t, 5, status.UsageCount)
	assert.True(t, status.Remaining.Exhausted())

	w = call(engine, "GET", "/history", "valid-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []model.Recommendation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	assert.Len(t, recs, 5)
}

func TestRouter_InvalidNextActionDoesNotConsumeQuota(t *testing.T) {
	engine := setupEngine(t)

	for _, body := range []string{
		``,
		`not json`,
		`{"availableMinutes":1,"energy":2,"context":"HOME"}`,
		`{"availableMinutes":20,"energy":9,"context":"HOME"}`,
		`{"availableMinutes":20,"energy":2,"context":"SPACE"}`,
	} {
		w := call(engine, "POST", "/next-action", "valid-token", body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}

	w := call(engine, "GET", "/billing/status", "valid-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.EntitlementStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Zero(t, status.UsageCount)
	assert.Equal(t, 5, status.Remaining.Count)

	w = call(engine, "POST", "/next-action", "valid-token", `{"availableMinutes":20,"energy":2,"context":"HOME"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
