// Package activity posts audit entries to the user service's activity log.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tradeledger/internal/domain/audit"
)

// Client implements audit.Recorder over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

var _ audit.Recorder = (*Client)(nil)

// NewClient posts to url with the given timeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Record sends one entry. Any non-2xx answer is an error.
func (c *Client) Record(ctx context.Context, entry audit.Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post activity: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("activity service returned status %d", resp.StatusCode)
	}
	return nil
}
