package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jwalitptl/botops-api/internal/provider"
	"github.com/jwalitptl/botops-api/pkg/circuitbreaker"
)

// Client sends messages through the channel gateway's HTTP API. The gateway
// owns the actual network connections (WhatsApp, Telegram, web chat); this
// client only cares about success, failure and the external message id.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *circuitbreaker.CircuitBreaker
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "channel-gateway",
			MaxFailures: 10,
			Timeout:     30 * time.Second,
		}),
	}
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

func (c *Client) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	var result *provider.SendResult
	err = c.cb.Execute(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build gateway request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("gateway request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}

		var sr sendResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
		if !sr.Success {
			return fmt.Errorf("gateway rejected message: %s", sr.Error)
		}

		result = &provider.SendResult{ExternalID: sr.MessageID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
