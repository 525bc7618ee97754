// Package errors defines the tagged error taxonomy used across the OAuth
// flow, the content-API dispatcher and the HTTP boundary. Callers classify
// failures with errors.Is against the sentinels below, never by matching
// message substrings.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
var New = errors.New

// Is reports whether any error in err's chain matches target.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
var As = errors.As

// Sentinel errors for every failure class the system distinguishes.
var (
	// ErrUpstreamAuth: an OAuth endpoint answered non-2xx.
	ErrUpstreamAuth = errors.New("upstream_auth_error")
	// ErrProtocol: a 2xx OAuth response was missing required fields.
	ErrProtocol = errors.New("protocol_error")
	// ErrSessionMismatch: callback token does not match the pending token.
	ErrSessionMismatch = errors.New("session_mismatch")
	// ErrNotAuthenticated: no access token bound to the session.
	ErrNotAuthenticated = errors.New("not_authenticated")
	// ErrRateLimited: the content API answered 429.
	ErrRateLimited = errors.New("rate_limited")
	// ErrUpstreamAPI: any other non-2xx from the content API.
	ErrUpstreamAPI = errors.New("upstream_api_error")
	// ErrAIQuota: the generative-AI service refused for quota reasons.
	ErrAIQuota = errors.New("ai_quota_exceeded")
)

// Descriptions error description
var Descriptions = map[error]string{
	ErrUpstreamAuth:     "the authentication provider rejected the request",
	ErrProtocol:         "the authentication provider returned an incomplete response",
	ErrSessionMismatch:  "callback does not match a login pending on this session",
	ErrNotAuthenticated: "sign in before performing this operation",
	ErrRateLimited:      "the platform rate limit was exceeded",
	ErrUpstreamAPI:      "the platform rejected the request",
	ErrAIQuota:          "the generation service quota is exhausted",
}

// StatusCodes maps each sentinel to the HTTP status reported at the boundary.
var StatusCodes = map[error]int{
	ErrUpstreamAuth:     502,
	ErrProtocol:         502,
	ErrSessionMismatch:  403,
	ErrNotAuthenticated: 401,
	ErrRateLimited:      429,
	ErrUpstreamAPI:      502,
	ErrAIQuota:          429,
}

// UpstreamError wraps one of the sentinels with the upstream detail needed
// for diagnosis: the verbatim response body, the upstream HTTP status, a
// wait hint for rate limits and a timeout marker.
type UpstreamError struct {
	Kind       error
	StatusCode int
	Detail     string
	RetryAfter time.Duration
	Timeout    bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%v: request timed out", e.Kind)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%v: upstream status %d: %s", e.Kind, e.StatusCode, e.Detail)
	}
	return e.Kind.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Kind }

// WrapUpstream tags a non-2xx upstream response with its status and verbatim body.
func WrapUpstream(kind error, statusCode int, detail string) *UpstreamError {
	return &UpstreamError{Kind: kind, StatusCode: statusCode, Detail: detail}
}

// WrapTimeout tags a timed-out or failed transport call. Treated the same as
// a non-2xx by callers; no partial state may be committed on its strength.
func WrapTimeout(kind error, cause error) *UpstreamError {
	return &UpstreamError{Kind: kind, Detail: cause.Error(), Timeout: true}
}

// RateLimited builds the 429 error with the wait hint derived from the
// platform's reset header (or the fixed fallback chosen by the caller).
func RateLimited(wait time.Duration, detail string) *UpstreamError {
	return &UpstreamError{Kind: ErrRateLimited, StatusCode: 429, Detail: detail, RetryAfter: wait}
}
