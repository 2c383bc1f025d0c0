package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat completions endpoint. Every
// call runs through the shared retry/breaker executor, so transient
// upstream trouble is retried and sustained trouble trips the breaker.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	onUsage    func(model string, usage Usage)
}

func New(baseURL, model, apiKey string, timeout time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   resilience.NewExecutor(resilience.DefaultConfig().WithMaxRetries(maxRetries)),
	}
}

// OnUsage registers a token-accounting observer, called after every
// successful completion. Must be set before the client is shared.
func (c *Client) OnUsage(fn func(model string, usage Usage)) {
	c.onUsage = fn
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
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Usage is the token accounting of the most recent successful completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	answer, _, err := c.CompleteWithUsage(ctx, messages)
	return answer, err
}

func (c *Client) CompleteWithUsage(ctx context.Context, messages []domain.ChatMessage) (string, Usage, error) {
	const operation = "chat_completion"

	request := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	var response chatResponse
	err := c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		response = chatResponse{}
		return c.postJSON(ctx, "/chat/completions", request, &response, operation)
	}, classifyUpstreamError)
	if err != nil {
		return "", Usage{}, wrapUpstreamError(operation, err)
	}

	if len(response.Choices) == 0 {
		return "", Usage{}, domain.WrapError(domain.ErrUpstreamUnavailable, operation, fmt.Errorf("empty choices in completion response"))
	}

	usage := Usage{
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
	}
	if c.onUsage != nil {
		c.onUsage(c.model, usage)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), usage, nil
}

func (c *Client) Model() string { return c.model }
