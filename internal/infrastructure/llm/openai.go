package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/config"
)

// maxResponseSize bounds the completion body read from the API.
const maxResponseSize = 1 << 20

// Completion is the distilled result of one chat-completions call.
type Completion struct {
	Content string
	Model   string
}

// OpenAIClient talks to OpenAI-compatible chat-completions endpoints.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient builds a client from reader configuration.
func NewOpenAIClient(cfg config.ReaderConfig) *OpenAIClient {
	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.LLMModel,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete posts one system+user exchange and returns the assistant text.
// Transport failures and retryable statuses come back wrapped as transient;
// everything else is fatal for the attempt loop upstream.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (Completion, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return Completion{}, fmt.Errorf("llm client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, NewTransientError(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Completion{}, NewTransientError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(raw))
		statusErr := fmt.Errorf("llm error %s: %s", resp.Status, detail)
		if retryableStatus(resp.StatusCode) {
			return Completion{}, NewTransientError(statusErr)
		}
		return Completion{}, statusErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Completion{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return Completion{}, fmt.Errorf("llm api error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("llm returned no choices")
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}

	return Completion{
		Content: parsed.Choices[0].Message.Content,
		Model:   model,
	}, nil
}

// retryableStatus reports whether an HTTP status is worth retrying:
// rate limiting and server-side failures only.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
