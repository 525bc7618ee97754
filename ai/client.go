// Package ai calls an OpenAI-compatible generation API for text and image
// inspiration. Quota exhaustion is surfaced distinctly from other upstream
// failures so the UI can tell the user to come back later.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kgashok/PlumConfusedOpensource/errors"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Client talks to the generation API with a bounded timeout per call.
type Client struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// GenerateText returns a completion for prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": c.model(),
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", payload, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.WrapUpstream(errors.ErrUpstreamAPI, http.StatusOK, "completion response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// GenerateImage returns the URL of a generated image for prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"prompt": prompt,
		"n":      1,
		"size":   "512x512",
	}

	var out struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/images/generations", payload, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", errors.WrapUpstream(errors.ErrUpstreamAPI, http.StatusOK, "image response has no url")
	}
	return out.Data[0].URL, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return errors.WrapTimeout(errors.ErrUpstreamAPI, err)
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if isQuotaError(resp.StatusCode, raw) {
			return errors.WrapUpstream(errors.ErrAIQuota, resp.StatusCode, string(raw))
		}
		return errors.WrapUpstream(errors.ErrUpstreamAPI, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.WrapUpstream(errors.ErrUpstreamAPI, resp.StatusCode, "malformed response body")
	}
	return nil
}

// isQuotaError detects the provider's quota refusals: either a plain 429 or
// the tagged insufficient_quota error body.
func isQuotaError(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	var e struct {
		Error struct {
			Code string `json:"code"`
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	return e.Error.Code == "insufficient_quota" || e.Error.Type == "insufficient_quota"
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModel
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}
