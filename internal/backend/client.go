package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidyhost/engage/internal/capability"
	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/retry"
)

const (
	// One silent retry for the push-subscribe POST; polling relies on the
	// next natural tick instead.
	subscribeAttempts   = 2
	subscribeRetryDelay = 500 * time.Millisecond
)

// Client talks to the marketplace backend's engagement endpoints.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	sched      clock.Scheduler
	logger     *logger.Logger
}

// NewClient creates a backend client.
func NewClient(baseURL, apiToken string, sched clock.Scheduler, logger *logger.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second, // Short timeout for polling requests
		},
		sched:  sched,
		logger: logger.WithComponent("backend_client"),
	}
}

// PendingOrdersSummary fetches the current pending-orders snapshot.
func (c *Client) PendingOrdersSummary(ctx context.Context) (*PendingOrdersSnapshot, error) {
	url := c.baseURL + "/api/v1/admin/pending-orders-summary"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("pending-orders summary returned error",
			slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var snapshot PendingOrdersSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	c.logger.Debug("polled pending orders",
		slog.Int("count", snapshot.Count))

	return &snapshot, nil
}

// PushPublicKey fetches the server's push public key. Returns an empty
// string when the server omits one; callers fall back to a configured
// default.
func (c *Client) PushPublicKey(ctx context.Context) (string, error) {
	url := c.baseURL + "/api/v1/push/public-key"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch push public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var key pushKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return "", fmt.Errorf("failed to decode public key: %w", err)
	}

	return key.PublicKey, nil
}

// RegisterPushSubscription registers a subscription with the backend. The
// POST is retried once on transient failure before the caller sees an error.
func (c *Client) RegisterPushSubscription(ctx context.Context, sub *capability.Subscription) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	url := c.baseURL + "/api/v1/push/subscribe"

	return retry.Do(ctx, subscribeAttempts, subscribeRetryDelay, c.sched, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to register subscription: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.logger.Error("push subscribe returned error",
				slog.Int("status_code", resp.StatusCode))
			return fmt.Errorf("backend returned status %d", resp.StatusCode)
		}

		return nil
	})
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")
}
