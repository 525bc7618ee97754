// Package twitter issues signed calls against the platform's content API
// using a session's bound access token. It performs no retries: a rejected
// or timed-out call is surfaced to the caller, and any retry goes back
// through the signer for a fresh nonce and timestamp.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/models"
	"github.com/kgashok/PlumConfusedOpensource/oauth1"
)

const (
	defaultBaseURL       = "https://api.twitter.com"
	defaultUploadBaseURL = "https://upload.twitter.com"
	defaultTimeout       = 15 * time.Second
	userAgent            = "PlumConfusedOpensource/1.0"

	// rateLimitResetHeader carries the Unix time at which the platform's
	// window resets.
	rateLimitResetHeader = "x-rate-limit-reset"
	// fallbackWait is the wait hint when the reset header is absent.
	fallbackWait = 900 * time.Second
)

// Client is the authorized request dispatcher for the content API.
type Client struct {
	Signer        *oauth1.Signer
	BaseURL       string
	UploadBaseURL string
	HTTPClient    *http.Client
	// Limiter is an optional client-side courtesy limit on outbound calls.
	Limiter *rate.Limiter
	// Clock is used for rate-limit wait computation; tests pin it.
	Clock func() time.Time
}

// Tweet is the platform's view of one created or fetched message.
type Tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	AuthorID  string    `json:"author_id,omitempty"`
}

// SearchUser appears under includes.users when author expansion is requested.
type SearchUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SearchResponse is the decoded body of a recent-search call.
type SearchResponse struct {
	Data     []Tweet `json:"data"`
	Includes *struct {
		Users []SearchUser `json:"users"`
	} `json:"includes,omitempty"`
}

// Username resolves an author id through the includes block.
func (r *SearchResponse) Username(authorID string) string {
	if r.Includes == nil {
		return ""
	}
	for _, u := range r.Includes.Users {
		if u.ID == authorID {
			return u.Username
		}
	}
	return ""
}

// CreateTweet posts a message, optionally attaching a previously uploaded
// media id. The platform answers 201 with the new tweet's id; nothing may
// be recorded locally until that id is in hand.
func (c *Client) CreateTweet(ctx context.Context, tok *models.AccessToken, text, mediaID string) (*Tweet, error) {
	payload := map[string]interface{}{"text": text}
	if mediaID != "" {
		payload["media"] = map[string]interface{}{"media_ids": []string{mediaID}}
	}

	var out struct {
		Data Tweet `json:"data"`
	}
	if err := c.doJSON(ctx, tok, http.MethodPost, c.baseURL()+"/2/tweets", payload, &out); err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, errors.WrapUpstream(errors.ErrUpstreamAPI, http.StatusCreated, "create response missing tweet id")
	}
	return &out.Data, nil
}

// DeleteTweet removes a previously posted message.
func (c *Client) DeleteTweet(ctx context.Context, tok *models.AccessToken, id string) error {
	var out struct {
		Data struct {
			Deleted bool `json:"deleted"`
		} `json:"data"`
	}
	return c.doJSON(ctx, tok, http.MethodDelete, c.baseURL()+"/2/tweets/"+url.PathEscape(id), nil, &out)
}

// Retweet reposts tweetID as the session's user.
func (c *Client) Retweet(ctx context.Context, tok *models.AccessToken, tweetID string) error {
	payload := map[string]interface{}{"tweet_id": tweetID}
	var out struct {
		Data struct {
			Retweeted bool `json:"retweeted"`
		} `json:"data"`
	}
	target := fmt.Sprintf("%s/2/users/%s/retweets", c.baseURL(), url.PathEscape(tok.UserID))
	return c.doJSON(ctx, tok, http.MethodPost, target, payload, &out)
}

// SearchRecent runs a recent-search with author expansion. maxResults is
// clamped to the API's 10..100 window.
func (c *Client) SearchRecent(ctx context.Context, tok *models.AccessToken, query string, maxResults int) (*SearchResponse, error) {
	if maxResults < 10 {
		maxResults = 10
	} else if maxResults > 100 {
		maxResults = 100
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username")

	var out SearchResponse
	target := c.baseURL() + "/2/tweets/search/recent?" + q.Encode()
	if err := c.doJSON(ctx, tok, http.MethodGet, target, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON signs and sends one call with a JSON body (or none) and decodes a
// 2xx response into out.
func (c *Client) doJSON(ctx context.Context, tok *models.AccessToken, method, target string, payload, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}

	// JSON bodies are not form-encoded, so only oauth and query parameters
	// enter the signature base string.
	header, err := c.Signer.AuthorizationHeader(method, target, nil, tok.Token, tok.TokenSecret)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}
	if err := c.classify(resp, raw); err != nil {
		return err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.WrapUpstream(errors.ErrUpstreamAPI, resp.StatusCode, "malformed response body")
		}
	}
	return nil
}

// classify maps a completed response onto the error taxonomy. The upstream
// body is carried verbatim, never swallowed.
func (c *Client) classify(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.RateLimited(c.resetWait(resp.Header), string(body))
	}
	return errors.WrapUpstream(errors.ErrUpstreamAPI, resp.StatusCode, string(body))
}

// resetWait derives the wait hint from the reset header, falling back to a
// fixed window when absent or already past.
func (c *Client) resetWait(h http.Header) time.Duration {
	reset, err := strconv.ParseInt(h.Get(rateLimitResetHeader), 10, 64)
	if err != nil {
		return fallbackWait
	}
	wait := time.Unix(reset, 0).Sub(c.now())
	if wait <= 0 {
		return fallbackWait
	}
	return wait
}

func (c *Client) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	return c.Limiter.Wait(ctx)
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) uploadBaseURL() string {
	if c.UploadBaseURL != "" {
		return c.UploadBaseURL
	}
	return defaultUploadBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}
