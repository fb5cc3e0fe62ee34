package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qs3c/nextaction_server/config"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client produces a single JSON object completion for a conversation.
type Client interface {
	CompleteJSON(ctx context.Context, messages []Message) (string, error)
	Model() string
}

var (
	ErrEmptyCompletion = errors.New("llm: empty completion")
	ErrNoMessages      = errors.New("llm: no messages")
)

const defaultGeminiModel = "gemini-1.5-flash"

// New builds the client selected by cfg.Provider.
func New(ctx context.Context, cfg *config.LLMConfig) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAI(cfg)
	case "gemini":
		model := cfg.Model
		if model == "" || strings.HasPrefix(model, "gpt-") {
			model = defaultGeminiModel
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, model, cfg.Temperature)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
