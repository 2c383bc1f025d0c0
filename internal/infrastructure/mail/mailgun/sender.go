package mailgun

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/infrastructure/resilience"
)

const defaultBaseURL = "https://api.mailgun.net/v3"

// Sender delivers mail through the Mailgun messages API. Delivery failures
// never block the conversation; callers treat them as advisory.
type Sender struct {
	baseURL    string
	domain     string
	apiKey     string
	from       string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(domain, apiKey, from string, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sender{
		baseURL:    defaultBaseURL,
		domain:     domain,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: timeout},
		executor:   resilience.NewExecutor(resilience.DefaultConfig()),
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (s *Sender) WithBaseURL(baseURL string) *Sender {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

func (s *Sender) Send(ctx context.Context, recipient, subject, body string) error {
	const operation = "mailgun_send"

	if strings.TrimSpace(recipient) == "" {
		return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("empty recipient"))
	}

	form := url.Values{}
	form.Set("from", s.from)
	form.Set("to", recipient)
	form.Set("subject", subject)
	form.Set("text", body)

	err := s.executor.Execute(ctx, operation, func(ctx context.Context) error {
		return s.postForm(ctx, form, operation)
	}, classifyMailError)
	if err != nil {
		return wrapDeliveryError(operation, err)
	}
	return nil
}

func (s *Sender) postForm(ctx context.Context, form url.Values, operation string) error {
	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
