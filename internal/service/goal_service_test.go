package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/repository"
	"github.com/qs3c/nextaction_server/internal/testutil"
)

func setupGoalService(t *testing.T) (*GoalService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	svc := NewGoalService(repository.NewGoalRepository(db))

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return svc, db, cleanup
}

func TestGoalService_Create_DefaultPriority(t *testing.T) {
	svc, db, cleanup := setupGoalService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	goal, err := svc.Create(context.Background(), user.ID, &dto.CreateGoalRequest{Title: "Learn Go"})
	require.NoError(t, err)
	assert.NotZero(t, goal.ID)
	assert.Equal(t, 3, goal.Priority)
	assert.Equal(t, user.ID, goal.UserID)
}

func TestGoalService_List(t *testing.T) {
	svc, db, cleanup := setupGoalService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestGoal(t, db, user.ID, "A")
	testutil.TestGoal(t, db, user.ID, "B")

	goals, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, goals, 2)
}

func TestGoalService_Update(t *testing.T) {
	svc, db, cleanup := setupGoalService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	goal := testutil.TestGoal(t, db, user.ID, "Old title")

	title := "New title"
	priority := 1
	updated, err := svc.Update(context.Background(), user.ID, goal.ID, &dto.UpdateGoalRequest{
		Title:    &title,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, 1, updated.Priority)
	assert.Equal(t, goal.Description, updated.Description)
}

func TestGoalService_Update_NotOwner(t *testing.T) {
	svc, db, cleanup := setupGoalService(t)
	defer cleanup()

	owner := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)
	goal := testutil.TestGoal(t, db, owner.ID, "Private")

	title := "Hijacked"
	_, err := svc.Update(context.Background(), other.ID, goal.ID, &dto.UpdateGoalRequest{Title: &title})
	assert.ErrorIs(t, err, ErrGoalNotFound)
}

func TestGoalService_Delete(t *testing.T) {
	svc, db, cleanup := setupGoalService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	goal := testutil.TestGoal(t, db, user.ID, "Temp")

	require.NoError(t, svc.Delete(context.Background(), user.ID, goal.ID))

	err := svc.Delete(context.Background(), user.ID, goal.ID)
	assert.ErrorIs(t, err, ErrGoalNotFound)
}
