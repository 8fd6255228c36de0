package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tripsmith/internal/domain"
	"tripsmith/internal/estimate"
	"tripsmith/internal/infra"
)

// Client calls the external pricing endpoint. A 429 response is mapped to
// domain.ErrRateLimited so the estimator can degrade to its local formula.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     infra.Logger
}

func NewClient(baseURL string, logger infra.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type estimateRequest struct {
	Destination   string  `json:"destination"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	PartySize     int     `json:"party_size"`
	ProfileID     string  `json:"profile_id,omitempty"`
	BudgetCeiling float64 `json:"budget_ceiling,omitempty"`
}

type estimateResponse struct {
	Estimate float64 `json:"estimate"`
	Currency string  `json:"currency"`
}

func (c *Client) Estimate(ctx context.Context, req domain.TripRequest) (float64, error) {
	// No endpoint configured: behave like a permanently rate-limited backend
	// so the caller's local formula takes over.
	if c.baseURL == "" {
		return 0, fmt.Errorf("pricing: no endpoint configured: %w", domain.ErrRateLimited)
	}

	payload := estimateRequest{
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		PartySize:   req.PartySize,
	}
	if req.Profile != nil {
		payload.ProfileID = req.Profile.ID
		payload.BudgetCeiling = req.Profile.BudgetCeiling
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("pricing: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/estimate", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("pricing: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("pricing: call endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("pricing: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, fmt.Errorf("pricing: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pricing: endpoint returned %d", resp.StatusCode)
	}

	var decoded estimateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return 0, fmt.Errorf("pricing: decode response: %w", err)
	}
	return decoded.Estimate, nil
}

var _ estimate.Backend = (*Client)(nil)
