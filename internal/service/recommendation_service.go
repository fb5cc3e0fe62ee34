package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/qs3c/nextaction_server/internal/model"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/llm"
	"github.com/qs3c/nextaction_server/internal/pkg/logger"
	"github.com/qs3c/nextaction_server/internal/pkg/metrics"
	"github.com/qs3c/nextaction_server/internal/repository"
)

var (
	ErrGenerationFailed       = errors.New("failed to generate a valid next action")
	ErrRecommendationNotFound = errors.New("recommendation not found")
)

const (
	maxGenerationAttempts = 2
	historyLimit          = 20
)

const systemPrompt = `You are a productivity coach. Your job is to analyze the user's goals, context, energy, and time constraints to recommend the single most effective "Next Action".

Output STRICT JSON only. No markdown, no explanations outside the JSON.
The JSON must match this schema:
{
  "title": "Action Title",
  "why_this": "Reasoning...",
  "steps": ["Step 1", "Step 2", "Step 3"],
  "time_minutes": number,
  "difficulty": number (1-5),
  "success_criteria": "How to know it's done",
  "fallback_if_stuck": "What to do if blocked"
}
"steps" must contain between 3 and 6 non-empty strings.`

type RecommendationService struct {
	recRepo  *repository.RecommendationRepository
	goalRepo *repository.GoalRepository
	fbRepo   *repository.FeedbackRepository
	llm      llm.Client
	validate *validator.Validate
	log      *logger.Logger
}

func NewRecommendationService(
	recRepo *repository.RecommendationRepository,
	goalRepo *repository.GoalRepository,
	fbRepo *repository.FeedbackRepository,
	llmClient llm.Client,
	log *logger.Logger,
) *RecommendationService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &RecommendationService{
		recRepo:  recRepo,
		goalRepo: goalRepo,
		fbRepo:   fbRepo,
		llm:      llmClient,
		validate: v,
		log:      log,
	}
}

// Generate 生成并保存一条"下一步行动"。模型输出未通过校验时带着错误信息重试一次
func (s *RecommendationService) Generate(ctx context.Context, userID int64, req *dto.NextActionRequest) (*model.Recommendation, error) {
	goals, err := s.goalsFor(userID, req.Goals)
	if err != nil {
		return nil, err
	}

	userPrompt, err := buildUserPrompt(req, goals)
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}

	var lastErr error
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		raw, err := s.llm.CompleteJSON(ctx, messages)
		if err != nil {
			lastErr = err
			metrics.GenerationAttemptsTotal.WithLabelValues("upstream_error").Inc()
			s.log.Warn("generation attempt failed", "user_id", userID, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		draft, err := s.parseDraft(raw)
		if err != nil {
			lastErr = err
			metrics.GenerationAttemptsTotal.WithLabelValues("invalid").Inc()
			s.log.Warn("generation output rejected", "user_id", userID, "attempt", attempt, "error", err)
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: raw},
				llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(
					"The previous attempt failed validation with error: %s. Please fix the JSON structure and try again.", err)},
			)
			continue
		}

		metrics.GenerationAttemptsTotal.WithLabelValues("valid").Inc()
		rec := &model.Recommendation{
			UserID:          userID,
			Title:           draft.Title,
			Rationale:       draft.WhyThis,
			Steps:           datatypes.JSONSlice[string](draft.Steps),
			TimeMinutes:     draft.TimeMinutes,
			Difficulty:      draft.Difficulty,
			SuccessCriteria: draft.SuccessCriteria,
			Fallback:        draft.FallbackIfStuck,
			RawResponse:     datatypes.JSON(raw),
			Model:           s.llm.Model(),
			Attempts:        attempt,
		}
		if err := s.recRepo.Create(rec); err != nil {
			return nil, fmt.Errorf("save recommendation: %w", err)
		}
		return rec, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrGenerationFailed, maxGenerationAttempts, lastErr)
}

// History 最近的推荐，新的在前
func (s *RecommendationService) History(ctx context.Context, userID int64) ([]*model.Recommendation, error) {
	return s.recRepo.ListRecentByUserID(userID, historyLimit)
}

// SubmitFeedback 记录对推荐的反馈。推荐不存在或不属于当前用户时返回 ErrRecommendationNotFound
func (s *RecommendationService) SubmitFeedback(ctx context.Context, userID int64, req *dto.FeedbackRequest) (*model.Feedback, error) {
	rec, err := s.recRepo.GetByID(req.ActionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrRecommendationNotFound
	}

	fb := &model.Feedback{
		UserID:           userID,
		RecommendationID: rec.ID,
		Type:             model.FeedbackType(req.Type),
		Note:             req.Note,
	}
	if err := s.fbRepo.Create(fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// goalsFor 请求里带了目标就用请求的，否则用用户保存的全部目标
func (s *RecommendationService) goalsFor(userID int64, supplied []dto.GoalInput) ([]dto.GoalInput, error) {
	if len(supplied) > 0 {
		return supplied, nil
	}

	stored, err := s.goalRepo.ListByUserID(userID)
	if err != nil {
		return nil, err
	}

	goals := make([]dto.GoalInput, 0, len(stored))
	for _, g := range stored {
		in := dto.GoalInput{
			ID:          strconv.FormatInt(g.ID, 10),
			Title:       g.Title,
			Description: g.Description,
			Priority:    g.Priority,
		}
		if g.Deadline != nil {
			d := g.Deadline.UTC().Format(time.RFC3339)
			in.Deadline = &d
		}
		goals = append(goals, in)
	}
	return goals, nil
}

func buildUserPrompt(req *dto.NextActionRequest, goals []dto.GoalInput) (string, error) {
	if goals == nil {
		goals = []dto.GoalInput{}
	}
	goalsJSON, err := json.MarshalIndent(goals, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Context: %s\n", req.Context)
	fmt.Fprintf(&b, "Available Time: %d minutes\n", req.AvailableMinutes)
	fmt.Fprintf(&b, "Energy Level: %d/5\n\n", req.Energy)
	b.WriteString("Current Goals:\n")
	b.Write(goalsJSON)
	b.WriteString("\n\nPlease generate the next action.")
	return b.String(), nil
}

// parseDraft 解析并校验模型输出
func (s *RecommendationService) parseDraft(raw string) (*dto.ActionDraft, error) {
	var draft dto.ActionDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	if err := s.validate.Struct(&draft); err != nil {
		return nil, describeValidation(err)
	}
	return &draft, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "ActionDraft.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min", "max", "gt":
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
