// Package sessions binds OAuth credentials to server-side sessions. It
// correlates the pending request token across the consent redirect and
// holds the access token for everything the user does afterwards.
//
// Per-session state machine:
//
//	ANONYMOUS -> (StorePending) -> PENDING -> (BindAccessToken) -> AUTHENTICATED -> (Destroy) -> ANONYMOUS
//
// A failed exchange from PENDING discards the pending token and returns to
// ANONYMOUS. Starting a new login while AUTHENTICATED re-enters PENDING;
// the old access token is only dropped once the new one is bound.
package sessions

import (
	"context"
	"net/http"

	session "github.com/go-session/session/v3"

	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/models"
)

// Session value keys. Values are stored as flat strings so they survive the
// JSON round-trip of persistent backends.
const (
	keyRequestToken  = "oauth_request_token"
	keyRequestSecret = "oauth_request_secret"
	keyAccessToken   = "oauth_access_token"
	keyAccessSecret  = "oauth_access_secret"
	keyUserID        = "oauth_user_id"
	keyScreenName    = "oauth_screen_name"
)

// Options configures the process-wide session manager.
type Options struct {
	Store      session.ManagerStore
	CookieName string
	Sign       []byte
	Secure     bool
	// Expired is the session lifetime in seconds.
	Expired int64
}

// Init installs the session manager. Must be called once before Start.
func Init(opts Options) {
	mo := []session.Option{
		session.SetEnableSetCookie(true),
		session.SetCookieLifeTime(0),
		session.SetSecure(opts.Secure),
	}
	if opts.Store != nil {
		mo = append(mo, session.SetStore(opts.Store))
	}
	if opts.CookieName != "" {
		mo = append(mo, session.SetCookieName(opts.CookieName))
	}
	if len(opts.Sign) > 0 {
		mo = append(mo, session.SetSign(opts.Sign))
	}
	if opts.Expired > 0 {
		mo = append(mo, session.SetExpired(opts.Expired))
	}
	session.InitManager(mo...)
}

// Start resolves (or creates) the session for this request.
func Start(ctx context.Context, w http.ResponseWriter, r *http.Request) (session.Store, error) {
	return session.Start(ctx, w, r)
}

// Destroy removes the session entirely: access token, any pending request
// token and the cookie. Used at logout.
func Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return session.Destroy(ctx, w, r)
}

// StorePending records the request token for one in-flight login attempt,
// overwriting any prior pending token. Concurrent logins from one session
// race last-write-wins here; the losing callback fails ResolvePending.
func StorePending(store session.Store, rt *models.RequestToken) error {
	store.Set(keyRequestToken, rt.Token)
	store.Set(keyRequestSecret, rt.TokenSecret)
	return store.Save()
}

// ResolvePending returns the pending request token iff returnedToken matches
// the one this session issued. A mismatch (or no pending login at all) fails
// without mutating the session, which blocks cross-session callback
// injection.
func ResolvePending(store session.Store, returnedToken string) (*models.RequestToken, error) {
	token := getString(store, keyRequestToken)
	secret := getString(store, keyRequestSecret)
	if token == "" || secret == "" {
		return nil, errors.WrapUpstream(errors.ErrSessionMismatch, 0, "no login pending on this session")
	}
	if returnedToken != token {
		return nil, errors.WrapUpstream(errors.ErrSessionMismatch, 0, "callback token does not match pending login")
	}
	return &models.RequestToken{Token: token, TokenSecret: secret}, nil
}

// Pending returns the login pending on this session without a token
// comparison. Used by the PIN flow, where the consent page hands the user a
// verifier instead of redirecting back with a token.
func Pending(store session.Store) (*models.RequestToken, error) {
	token := getString(store, keyRequestToken)
	secret := getString(store, keyRequestSecret)
	if token == "" || secret == "" {
		return nil, errors.WrapUpstream(errors.ErrSessionMismatch, 0, "no login pending on this session")
	}
	return &models.RequestToken{Token: token, TokenSecret: secret}, nil
}

// DiscardPending drops an unfinished login attempt, returning the session
// to its prior state. Pending tokens are never retried.
func DiscardPending(store session.Store) error {
	store.Delete(keyRequestToken)
	store.Delete(keyRequestSecret)
	return store.Save()
}

// BindAccessToken stores the access token and clears the pending request
// token in a single save, so the session never holds both a stale pending
// token and a bound access token.
func BindAccessToken(store session.Store, at *models.AccessToken) error {
	store.Set(keyAccessToken, at.Token)
	store.Set(keyAccessSecret, at.TokenSecret)
	store.Set(keyUserID, at.UserID)
	store.Set(keyScreenName, at.ScreenName)
	store.Delete(keyRequestToken)
	store.Delete(keyRequestSecret)
	return store.Save()
}

// AccessToken returns the access token bound to this session, or
// ErrNotAuthenticated when the session is anonymous or pending.
func AccessToken(store session.Store) (*models.AccessToken, error) {
	at := &models.AccessToken{
		Token:       getString(store, keyAccessToken),
		TokenSecret: getString(store, keyAccessSecret),
		UserID:      getString(store, keyUserID),
		ScreenName:  getString(store, keyScreenName),
	}
	if at.Token == "" || at.TokenSecret == "" {
		return nil, errors.ErrNotAuthenticated
	}
	return at, nil
}

func getString(store session.Store, key string) string {
	v, ok := store.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
