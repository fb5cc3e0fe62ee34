package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/testutil"
)

func TestRecommendationRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)

	rec := &model.Recommendation{
		UserID:          user.ID,
		Title:           "Draft intro",
		Rationale:       "Unblocks the rest",
		Steps:           datatypes.JSONSlice[string]{"a", "b", "c"},
		TimeMinutes:     20,
		Difficulty:      2,
		SuccessCriteria: "Intro written",
		Fallback:        "Write one sentence",
		RawResponse:     datatypes.JSON(`{"title":"Draft intro"}`),
		Model:           "gpt-3.5-turbo",
		Attempts:        2,
	}
	require.NoError(t, repo.Create(rec))

	found, err := repo.GetByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string(found.Steps))
	assert.Equal(t, 2, found.Attempts)
	assert.Nil(t, found.GoalID)
	assert.JSONEq(t, `{"title":"Draft intro"}`, string(found.RawResponse))
}

func TestRecommendationRepository_ListRecentByUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		testutil.TestRecommendation(t, db, user.ID, testutil.WithCreatedAt(base.Add(time.Duration(i)*time.Minute)))
	}
	testutil.TestRecommendation(t, db, other.ID)

	recs, err := repo.ListRecentByUserID(user.ID, 20)
	require.NoError(t, err)
	require.Len(t, recs, 20)
	for i := 1; i < len(recs); i++ {
		assert.False(t, recs[i].CreatedAt.After(recs[i-1].CreatedAt))
	}
	for _, rec := range recs {
		assert.Equal(t, user.ID, rec.UserID)
	}
}

func TestRecommendationRepository_ListRecentByUserID_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewRecommendationRepository(db)
	user := testutil.TestUser(t, db)

	recs, err := repo.ListRecentByUserID(user.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
