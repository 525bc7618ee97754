package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kgashok/PlumConfusedOpensource/models"
	"github.com/kgashok/PlumConfusedOpensource/sessions"
)

const (
	ctxKeySession     = "plum_session"
	ctxKeyAccessToken = "plum_access_token"

	requestIDHeader = "X-Request-ID"
)

// requestIDMiddleware tags every request with an id for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// RequireAuth resolves the caller's session and aborts with 401 before any
// network call when no access token is bound.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
		if err != nil {
			s.writeError(c, err)
			return
		}
		tok, err := sessions.AccessToken(store)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Set(ctxKeySession, store)
		c.Set(ctxKeyAccessToken, tok)
		c.Next()
	}
}

// accessTokenFrom returns the token RequireAuth bound to this request.
func accessTokenFrom(c *gin.Context) *models.AccessToken {
	v, _ := c.Get(ctxKeyAccessToken)
	tok, _ := v.(*models.AccessToken)
	return tok
}
