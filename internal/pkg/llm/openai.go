package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/pkg/httpx"
)

const chatCompletionsPath = "/v1/chat/completions"

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
	maxRetries  int

	httpClient *http.Client
}

// NewOpenAI builds a client on a pooled transport tuned for long completions.
func NewOpenAI(cfg *config.LLMConfig) (*OpenAIClient, error) {
	return NewOpenAIWithHTTPClient(cfg, nil)
}

// NewOpenAIWithHTTPClient builds a client that sends requests through
// httpClient. A nil httpClient gets the default pooled transport.
func NewOpenAIWithHTTPClient(cfg *config.LLMConfig, httpClient *http.Client) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("llm: openai api key required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}}
	}

	return &OpenAIClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		maxRetries:  maxRetries,
		httpClient:  httpClient,
	}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []Message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteJSON sends the conversation in JSON mode and returns the raw
// content of the first choice. Retryable upstream failures are retried up
// to maxRetries times with jittered backoff.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	reqBody := chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			var he *httpx.HTTPError
			if errors.As(lastErr, &he) && he.RetryAfter > 0 {
				backoff = he.RetryAfter
			}
			if err := httpx.Sleep(ctx, httpx.JitterSleep(backoff)); err != nil {
				return "", err
			}
		}

		var resp chatResponse
		err := c.doJSON(ctx, reqBody, &resp)
		if err == nil {
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return "", ErrEmptyCompletion
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (c *OpenAIClient) doJSON(ctx context.Context, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, c.baseURL+chatCompletionsPath, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &httpx.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfterDuration(resp, 0, 10*time.Second),
		}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
