package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripsmith/internal/domain"
	"tripsmith/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a lightweight facade over the Gemini generateContent endpoint.
// When no API key is configured it produces deterministic synthetic output so
// the worker stays fully operational in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// GenerateJSON asks the model for a JSON document. Without an API key it
// returns SyntheticJSON(prompt) instead of calling out.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	if c.apiKey == "" {
		if c.logger != nil {
			c.logger.Debug().Str("model", c.model).Msg("genai: no api key, returning synthetic document")
		}
		return SyntheticJSON(prompt), nil
	}

	payload := geminiGenerateContentRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{ResponseMimeType: "application/json"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("genai: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("genai: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("genai: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("genai: model returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded geminiGenerateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("genai: decode response: %w", err)
	}
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if !json.Valid([]byte(text)) {
				return nil, fmt.Errorf("genai: model returned invalid json")
			}
			return json.RawMessage(text), nil
		}
	}
	return nil, fmt.Errorf("genai: empty response")
}

// SyntheticJSON derives a stable placeholder document from the prompt hash.
func SyntheticJSON(prompt string) json.RawMessage {
	sum := sha256.Sum256([]byte(prompt))
	seed := hex.EncodeToString(sum[:8])
	doc := map[string]any{
		"synthetic": true,
		"seed":      seed,
	}
	raw, _ := json.Marshal(doc)
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
