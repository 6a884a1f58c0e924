package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
)

// ExchangeRequest is the body sent to the provider's token-exchange endpoint.
type ExchangeRequest struct {
	ClientID uuid.UUID `json:"client_id"`
	Secret   uuid.UUID `json:"secret"`
}

// ExchangeResponse is the provider's reply. Only AccessToken is consumed; the
// token-lifecycle fields are carried by the provider but ignored here.
type ExchangeResponse struct {
	Expires      string `json:"expires"`
	ExpiresIn    int64  `json:"expires_in"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Client exchanges a client-id/secret pair for a signed access token by
// calling the provider's HTTP endpoint. There are no retries: a failed
// exchange is terminal for the current authentication attempt.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.Collector
}

// NewClient creates a provider client bound to the configured endpoint. The
// timeout bounds each exchange; on expiry the attempt is treated as a
// provider failure.
func NewClient(url string, timeout time.Duration, logger *logging.Logger, collector *metrics.Collector) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithModule("identity.provider"),
		metrics:    collector,
	}
}

// Exchange trades the decoded password for a signed access token. Any network
// failure, non-2xx response, or malformed body yields an error; the caller
// maps it to the provider-unreachable failure.
func (c *Client) Exchange(ctx context.Context, password AppPassword) (string, error) {
	start := time.Now()
	token, err := c.exchange(ctx, password)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordProviderExchange(status, time.Since(start))
	return token, err
}

func (c *Client) exchange(ctx context.Context, password AppPassword) (string, error) {
	body, err := json.Marshal(ExchangeRequest{
		ClientID: password.ClientID,
		Secret:   password.Secret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Provider exchange failed", logging.Err(err))
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Provider exchange rejected", "status", resp.StatusCode)
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var exchangeResp ExchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&exchangeResp); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if exchangeResp.AccessToken == "" {
		return "", fmt.Errorf("provider response missing access token")
	}
	return exchangeResp.AccessToken, nil
}
