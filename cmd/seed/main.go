package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/database"
	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/repository"
)

const seedExternalID = "seed_demo_user"

var (
	dryRun = flag.Bool("dry-run", true, "Dry run mode, only report what would be created")
	email  = flag.String("email", "demo@nextaction.local", "Email of the demo user")
)

func main() {
	flag.Parse()

	log.Println("Starting seed task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed(db, *email, *dryRun)
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	log.Println(strings.Repeat("=", 60))
	log.Println("Seed Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("User: %s (created=%v)", *email, summary.userCreated)
	log.Printf("Goals created: %d", summary.goalsCreated)
	log.Printf("Recommendations created: %d", summary.recommendationsCreated)
	if *dryRun {
		log.Println("DRY RUN MODE - nothing was written")
		log.Println("Run with -dry-run=false to write the demo data")
	}
	log.Println(strings.Repeat("=", 60))
}

type seedSummary struct {
	userCreated            bool
	goalsCreated           int
	recommendationsCreated int
}

var demoGoals = []model.Goal{
	{Title: "Launch the landing page", Description: "Ship the first public version of the product page", Priority: 1},
	{Title: "Read 12 books this year", Description: "One book a month, mostly non-fiction", Priority: 3},
}

// seed 写入演示数据。重复执行不会产生重复记录
func seed(db *gorm.DB, email string, dryRun bool) (*seedSummary, error) {
	summary := &seedSummary{}

	userRepo := repository.NewUserRepository(db)
	entRepo := repository.NewEntitlementRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	recRepo := repository.NewRecommendationRepository(db)

	user, err := userRepo.GetByExternalID(seedExternalID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if user == nil {
		summary.userCreated = true
		if dryRun {
			summary.goalsCreated = len(demoGoals)
			summary.recommendationsCreated = 1
			return summary, nil
		}
		user, err = userRepo.UpsertFromProfile(&dto.Profile{
			ExternalID: seedExternalID,
			Email:      email,
			Name:       "Demo User",
		})
		if err != nil {
			return nil, err
		}
	}

	goals, err := goalRepo.ListByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	recs, err := recRepo.ListRecentByUserID(user.ID, 1)
	if err != nil {
		return nil, err
	}

	if dryRun {
		if len(goals) == 0 {
			summary.goalsCreated = len(demoGoals)
		}
		if len(recs) == 0 {
			summary.recommendationsCreated = 1
		}
		return summary, nil
	}

	// FREE 套餐，今日未使用
	if _, err := entRepo.GetOrCreate(user.ID); err != nil {
		return nil, err
	}

	var firstGoalID *int64
	if len(goals) == 0 {
		deadline := time.Now().AddDate(0, 1, 0).UTC().Truncate(24 * time.Hour)
		for i := range demoGoals {
			goal := demoGoals[i]
			goal.UserID = user.ID
			if i == 0 {
				goal.Deadline = &deadline
			}
			if err := goalRepo.Create(&goal); err != nil {
				return nil, err
			}
			if firstGoalID == nil {
				id := goal.ID
				firstGoalID = &id
			}
			summary.goalsCreated++
		}
	} else {
		id := goals[0].ID
		firstGoalID = &id
	}

	if len(recs) == 0 {
		rec := &model.Recommendation{
			UserID:          user.ID,
			GoalID:          firstGoalID,
			Title:           "Draft the hero headline",
			Rationale:       "The landing page has the nearest deadline and the headline blocks the rest of the copy.",
			Steps:           datatypes.JSONSlice[string]{"Open the landing page doc", "Write five headline options", "Pick the clearest one"},
			TimeMinutes:     20,
			Difficulty:      2,
			SuccessCriteria: "One headline chosen and pasted into the page",
			Fallback:        "Copy a competitor's structure and reword it",
			RawResponse:     datatypes.JSON(`{"seed":true}`),
			Model:           "seed",
			Attempts:        1,
		}
		if err := recRepo.Create(rec); err != nil {
			return nil, err
		}
		summary.recommendationsCreated = 1
	}

	return summary, nil
}
