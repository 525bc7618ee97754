package errors

import (
	"errors"
	"net/http"
)

// Response is the structured payload every error becomes at the HTTP
// boundary. The upstream detail is carried verbatim and never discarded.
type Response struct {
	Error       error
	Description string
	StatusCode  int
	Detail      string
	RetryAfter  int // seconds, only set for rate limits
}

// NewResponse create the response pointer
func NewResponse(err error, statusCode int) *Response {
	return &Response{Error: err, StatusCode: statusCode}
}

// ToResponse classifies err against the taxonomy and produces the payload
// written to the client. Unknown errors map to a plain 500.
func ToResponse(err error) *Response {
	for _, kind := range []error{
		ErrUpstreamAuth,
		ErrProtocol,
		ErrSessionMismatch,
		ErrNotAuthenticated,
		ErrRateLimited,
		ErrUpstreamAPI,
		ErrAIQuota,
	} {
		if !errors.Is(err, kind) {
			continue
		}
		resp := &Response{
			Error:       kind,
			Description: Descriptions[kind],
			StatusCode:  StatusCodes[kind],
		}
		var ue *UpstreamError
		if errors.As(err, &ue) {
			resp.Detail = ue.Detail
			if ue.RetryAfter > 0 {
				resp.RetryAfter = int(ue.RetryAfter.Seconds())
			}
		}
		return resp
	}
	return &Response{
		Error:       errors.New("server_error"),
		Description: err.Error(),
		StatusCode:  http.StatusInternalServerError,
	}
}
