// Package directory looks up notification recipients in the user service.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradeledger/internal/domain/lowstock"
	"tradeledger/pkg/logger"
	"tradeledger/pkg/resilience"
)

// Config holds the user service endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Breaker resilience.BreakerConfig
}

// DefaultConfig returns a 10s timeout, two quick retries and the standard breaker.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2,
		},
		Breaker: resilience.DefaultBreakerConfig("directory"),
	}
}

// Client calls GET {base}/users with company, role and store filters.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      resilience.RetryConfig
	breaker    *resilience.Breaker
}

var _ lowstock.Directory = (*Client)(nil)

// NewClient creates a directory client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retry:      cfg.Retry,
		breaker:    resilience.NewBreaker(cfg.Breaker, log),
	}
}

// statusError is a non-2xx answer. Client errors are not retried.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("directory returned status %d: %s", e.code, e.body)
}

func isClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code < http.StatusInternalServerError
}

// ListUsers returns the users matching q. The service may answer with a bare array
// or a paginated object carrying "results".
func (c *Client) ListUsers(ctx context.Context, q lowstock.UserQuery) ([]lowstock.Recipient, error) {
	retry := c.retry
	retry.Retryable = func(err error) bool { return !isClientError(err) }

	var users []lowstock.Recipient
	err := resilience.Retry(ctx, retry, func(ctx context.Context) error {
		// A 4xx means the service is up; it must not count toward tripping the breaker.
		var rejected error
		err := c.breaker.Execute(func() error {
			var err error
			users, err = c.fetch(ctx, q)
			if isClientError(err) {
				rejected = err
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
		return rejected
	})
	if err != nil {
		return nil, fmt.Errorf("list users (company %s, role %s): %w", q.CompanyID, q.Role, err)
	}
	return users, nil
}

func (c *Client) fetch(ctx context.Context, q lowstock.UserQuery) ([]lowstock.Recipient, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	params := req.URL.Query()
	if q.CompanyID != "" {
		params.Set("company_id", q.CompanyID)
	}
	if q.Role != "" {
		params.Set("role", q.Role)
	}
	if q.StoreID != "" {
		params.Set("store", q.StoreID)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read users response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}
	return decodeUsers(body)
}

func decodeUsers(body []byte) ([]lowstock.Recipient, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var page struct {
			Results []lowstock.Recipient `json:"results"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode users response: %w", err)
		}
		return page.Results, nil
	}

	var users []lowstock.Recipient
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", err)
	}
	return users, nil
}
