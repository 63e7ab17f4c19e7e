package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"partsync-backend/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com"
	completionPath = "/v1/chat/completions"
)

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Classify submits one batch of keys and returns the raw message content.
// Failure classification happens here, at the HTTP boundary: a 429 (or an
// explicit rate-limit error type in the body) wraps llm.ErrRateLimited,
// everything else wraps llm.ErrUnavailable.
func (c *Client) Classify(ctx context.Context, input llm.ClassifyInput) (llm.ClassifyResult, error) {
	messages := BuildClassifyPrompt(input.Categories, input.Items)
	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: m.Role, Content: m.Content})
	}
	temp := float32(0)
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    reqMessages,
		Temperature: &temp,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.ClassifyResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionPath, bytes.NewReader(payload))
	if err != nil {
		return llm.ClassifyResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llm.ClassifyResult{}, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.ClassifyResult{}, fmt.Errorf("%w: read response: %v", llm.ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return llm.ClassifyResult{}, fmt.Errorf("%w: http status %d", llm.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return llm.ClassifyResult{}, fmt.Errorf("%w: http status %d", llm.ErrUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.ClassifyResult{}, fmt.Errorf("%w: response parse: %v", llm.ErrUnavailable, err)
	}
	if parsed.Error != nil {
		if parsed.Error.Type == "rate_limit_exceeded" || parsed.Error.Type == "insufficient_quota" {
			return llm.ClassifyResult{}, fmt.Errorf("%w: %s", llm.ErrRateLimited, parsed.Error.Message)
		}
		return llm.ClassifyResult{}, fmt.Errorf("%w: %s (%s)", llm.ErrUnavailable, parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return llm.ClassifyResult{}, fmt.Errorf("%w: response missing choices", llm.ErrUnavailable)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return llm.ClassifyResult{}, fmt.Errorf("%w: response empty content", llm.ErrUnavailable)
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return llm.ClassifyResult{
		Content: content,
		Model:   model,
		Usage:   toUsage(parsed.Usage),
	}, nil
}

func toUsage(raw *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) *llm.Usage {
	if raw == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     raw.PromptTokens,
		CompletionTokens: raw.CompletionTokens,
		TotalTokens:      raw.TotalTokens,
	}
}

var _ llm.Client = (*Client)(nil)
