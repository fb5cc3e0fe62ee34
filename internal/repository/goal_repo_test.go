package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/testutil"
)

func TestGoalRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewGoalRepository(db)
	user := testutil.TestUser(t, db)

	goal := &model.Goal{UserID: user.ID, Title: "Ship v1", Priority: 1}
	require.NoError(t, repo.Create(goal))
	assert.NotZero(t, goal.ID)
}

func TestGoalRepository_ListByUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewGoalRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)

	require.NoError(t, repo.Create(&model.Goal{UserID: user.ID, Title: "Low", Priority: 5}))
	require.NoError(t, repo.Create(&model.Goal{UserID: user.ID, Title: "High", Priority: 1}))
	testutil.TestGoal(t, db, other.ID, "Not mine")

	goals, err := repo.ListByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "High", goals[0].Title)
	assert.Equal(t, "Low", goals[1].Title)
}

func TestGoalRepository_UpdateFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewGoalRepository(db)
	user := testutil.TestUser(t, db)
	goal := testutil.TestGoal(t, db, user.ID, "Old")

	require.NoError(t, repo.UpdateFields(goal.ID, map[string]interface{}{"title": "New", "priority": 2}))

	found, err := repo.GetByID(goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", found.Title)
	assert.Equal(t, 2, found.Priority)
}

func TestGoalRepository_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewGoalRepository(db)
	user := testutil.TestUser(t, db)
	goal := testutil.TestGoal(t, db, user.ID, "Temp")

	require.NoError(t, repo.Delete(goal.ID))

	_, err := repo.GetByID(goal.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
