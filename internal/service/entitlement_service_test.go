package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/repository"
	"github.com/qs3c/nextaction_server/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.Local)

func setupEntitlementService(t *testing.T) (*EntitlementService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{Entitlement: config.EntitlementConfig{FreeDailyLimit: 5}}

	svc := NewEntitlementService(repository.NewEntitlementRepository(db), cfg)
	svc.now = func() time.Time { return fixedNow }

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return svc, db, cleanup
}

func loadEntitlement(t *testing.T, db *gorm.DB, userID int64) *model.Entitlement {
	t.Helper()
	var ent model.Entitlement
	require.NoError(t, db.Where("user_id = ?", userID).First(&ent).Error)
	return &ent
}

func TestEntitlementService_GetStatus_CreatesDefault(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	status, err := svc.GetStatus(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanFree, status.Plan)
	assert.Equal(t, 0, status.UsageCount)
	assert.Equal(t, 5, status.Remaining.Count)
	assert.Equal(t, 5, status.Limit)

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, model.StatusActive, ent.Status)
}

func TestEntitlementService_GetStatus_StaleDayReportsZeroWithoutWriting(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithUsage(5, fixedNow.AddDate(0, 0, -1)))

	status, err := svc.GetStatus(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.UsageCount)
	assert.Equal(t, 5, status.Remaining.Count)

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, 5, ent.UsageCount)
}

func TestEntitlementService_GetStatus_ProIsUnlimited(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithPlan(model.PlanPro), testutil.WithUsage(9, fixedNow))

	status, err := svc.GetStatus(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, status.Remaining.Unlimited)
	assert.Equal(t, 5, status.Limit)

	raw, err := json.Marshal(status)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":"PRO","usageCount":9,"remaining":"UNLIMITED","limit":5}`, string(raw))
}

func TestEntitlementService_CheckAndIncrement_FreeUnderLimit(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithUsage(3, fixedNow))

	ok, err := svc.CheckAndIncrement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, 4, ent.UsageCount)
	require.NotNil(t, ent.LastUsageAt)
}

func TestEntitlementService_CheckAndIncrement_FreeAtLimit(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithUsage(5, fixedNow))

	ok, err := svc.CheckAndIncrement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, 5, ent.UsageCount)
}

func TestEntitlementService_CheckAndIncrement_NewDayStartsAtOne(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithUsage(5, fixedNow.AddDate(0, 0, -1)))

	ok, err := svc.CheckAndIncrement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, 1, ent.UsageCount)
	assert.Equal(t, "2026-03-14", ent.UsageDay)
}

func TestEntitlementService_CheckAndIncrement_FirstEverUse(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	ok, err := svc.CheckAndIncrement(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, 1, ent.UsageCount)
}

func TestEntitlementService_CheckAndIncrement_ProNeverCounts(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithPlan(model.PlanPro), testutil.WithUsage(7, fixedNow.AddDate(0, 0, -2)))

	for i := 0; i < 3; i++ {
		ok, err := svc.CheckAndIncrement(context.Background(), user.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ent := loadEntitlement(t, db, user.ID)
	assert.Equal(t, 7, ent.UsageCount)
	assert.Equal(t, "2026-03-14", ent.UsageDay)
	require.NotNil(t, ent.LastUsageAt)
}

func TestEntitlementService_CheckAndIncrement_SingleAdmissionAtFour(t *testing.T) {
	svc, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestEntitlement(t, db, user.ID, testutil.WithUsage(4, fixedNow))

	admitted := 0
	for i := 0; i < 2; i++ {
		ok, err := svc.CheckAndIncrement(context.Background(), user.ID)
		require.NoError(t, err)
		if ok {
			admitted++
		}
	}

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 5, loadEntitlement(t, db, user.ID).UsageCount)
}

func TestEntitlementService_FreeDailyLimit_Default(t *testing.T) {
	svc := NewEntitlementService(nil, &config.Config{})
	assert.Equal(t, 5, svc.FreeDailyLimit())

	svc = NewEntitlementService(nil, &config.Config{Entitlement: config.EntitlementConfig{FreeDailyLimit: 2}})
	assert.Equal(t, 2, svc.FreeDailyLimit())
}
