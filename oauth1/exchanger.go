package oauth1

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/models"
)

// OutOfBand is the callback value for the PIN-based flow, where the user
// copies a verifier from the consent page instead of being redirected back.
const OutOfBand = "oob"

const defaultExchangeTimeout = 15 * time.Second

// Endpoints are the platform's OAuth1.0a endpoints.
type Endpoints struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
}

// TwitterEndpoints returns the endpoints of the Twitter API. The
// request-token URL asks for write access up front, matching how the
// application registers itself.
func TwitterEndpoints() Endpoints {
	return Endpoints{
		RequestTokenURL: "https://api.twitter.com/oauth/request_token?x_auth_access_type=write",
		AuthorizeURL:    "https://api.twitter.com/oauth/authorize",
		AccessTokenURL:  "https://api.twitter.com/oauth/access_token",
	}
}

// Exchanger performs the two network round-trips of the three-legged flow.
// It holds no per-user state; persisting results is the session binder's job.
type Exchanger struct {
	Signer    *Signer
	Endpoints Endpoints
	// Client is the HTTP client for the exchanges. Defaults to one with a
	// bounded timeout; exchanges must never hang on the platform.
	Client *http.Client
}

// RequestToken acquires a request token, announcing callbackURL (or
// OutOfBand for the PIN flow). The caller must not redirect the user unless
// this succeeds with a confirmed callback.
func (e *Exchanger) RequestToken(ctx context.Context, callbackURL string) (*models.RequestToken, error) {
	extra := url.Values{"oauth_callback": {callbackURL}}
	vals, err := e.post(ctx, e.Endpoints.RequestTokenURL, extra, "", "")
	if err != nil {
		return nil, err
	}

	rt := &models.RequestToken{
		Token:             vals.Get("oauth_token"),
		TokenSecret:       vals.Get("oauth_token_secret"),
		CallbackConfirmed: vals.Get("oauth_callback_confirmed") == "true",
	}
	if rt.Token == "" || rt.TokenSecret == "" {
		return nil, errors.WrapUpstream(errors.ErrProtocol, http.StatusOK, "request token response missing oauth_token")
	}
	if !rt.CallbackConfirmed {
		return nil, errors.WrapUpstream(errors.ErrProtocol, http.StatusOK, "oauth_callback_confirmed is not true")
	}
	return rt, nil
}

// AuthorizeURL builds the consent-page URL the user is redirected to.
func (e *Exchanger) AuthorizeURL(token string) (string, error) {
	u, err := url.Parse(e.Endpoints.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("parse authorize url: %w", err)
	}
	q := u.Query()
	q.Set("oauth_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// AccessToken exchanges a pending request token plus the verifier returned
// by the consent page for the user's access token.
func (e *Exchanger) AccessToken(ctx context.Context, pending *models.RequestToken, verifier string) (*models.AccessToken, error) {
	extra := url.Values{"oauth_verifier": {verifier}}
	vals, err := e.post(ctx, e.Endpoints.AccessTokenURL, extra, pending.Token, pending.TokenSecret)
	if err != nil {
		return nil, err
	}

	at := &models.AccessToken{
		Token:       vals.Get("oauth_token"),
		TokenSecret: vals.Get("oauth_token_secret"),
		UserID:      vals.Get("user_id"),
		ScreenName:  vals.Get("screen_name"),
	}
	if at.Token == "" || at.TokenSecret == "" || at.UserID == "" || at.ScreenName == "" {
		return nil, errors.WrapUpstream(errors.ErrProtocol, http.StatusOK, "access token response missing required fields")
	}
	return at, nil
}

// post signs and sends one exchange request and parses the form-encoded
// response body.
func (e *Exchanger) post(ctx context.Context, rawurl string, extra url.Values, token, tokenSecret string) (url.Values, error) {
	header, err := e.Signer.AuthorizationHeader(http.MethodPost, rawurl, extra, token, tokenSecret)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Authorization", header)

	resp, err := e.client().Do(req)
	if err != nil {
		return nil, errors.WrapTimeout(errors.ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTimeout(errors.ErrUpstreamAuth, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.WrapUpstream(errors.ErrUpstreamAuth, resp.StatusCode, string(body))
	}

	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errors.WrapUpstream(errors.ErrProtocol, resp.StatusCode, "malformed form-encoded response")
	}
	return vals, nil
}

func (e *Exchanger) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return &http.Client{Timeout: defaultExchangeTimeout}
}
