package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/models"
	"github.com/kgashok/PlumConfusedOpensource/oauth1"
	"github.com/kgashok/PlumConfusedOpensource/sessions"
)

// HandleBeginLogin starts the three-legged flow: acquire a request token,
// store it on the caller's session and redirect to the consent page. The
// redirect only happens after the pending token is safely stored.
func (s *Server) HandleBeginLogin(c *gin.Context) {
	store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		s.redirectError(c, err)
		return
	}

	rt, err := s.Exchanger.RequestToken(c.Request.Context(), s.Config.OAuth.CallbackURL)
	if err != nil {
		log.Printf("auth: request token failed: %v", err)
		s.recordLogin("failed")
		s.redirectError(c, err)
		return
	}
	if err := sessions.StorePending(store, rt); err != nil {
		s.redirectError(c, err)
		return
	}

	authorizeURL, err := s.Exchanger.AuthorizeURL(rt.Token)
	if err != nil {
		s.redirectError(c, err)
		return
	}
	s.recordLogin("started")
	c.Redirect(http.StatusFound, authorizeURL)
}

// HandleCallback completes the flow: verify the returning token against the
// session's pending login, exchange it for an access token and bind that to
// the session. A failed exchange discards the pending token; it is never
// retried.
func (s *Server) HandleCallback(c *gin.Context) {
	store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		s.redirectError(c, err)
		return
	}

	returnedToken := c.Query("oauth_token")
	verifier := c.Query("oauth_verifier")
	if verifier == "" {
		// Denied consent comes back without a verifier; don't burn an
		// exchange round-trip on it. The pending token stays so the user
		// can retry the same login.
		s.recordLogin("failed")
		s.redirectError(c, fmt.Errorf("callback missing oauth_verifier: %w", errors.ErrProtocol))
		return
	}

	pending, err := sessions.ResolvePending(store, returnedToken)
	if err != nil {
		s.recordLogin("failed")
		s.redirectError(c, err)
		return
	}

	at, err := s.Exchanger.AccessToken(c.Request.Context(), pending, verifier)
	if err != nil {
		log.Printf("auth: access token exchange failed: %v", err)
		if derr := sessions.DiscardPending(store); derr != nil {
			log.Printf("auth: discarding pending token failed: %v", derr)
		}
		s.recordLogin("failed")
		s.redirectError(c, err)
		return
	}

	if err := sessions.BindAccessToken(store, at); err != nil {
		s.redirectError(c, err)
		return
	}
	s.recordLogin("completed")
	c.Redirect(http.StatusFound, "/")
}

// HandleLogout destroys the session; subsequent content calls answer 401.
func (s *Server) HandleLogout(c *gin.Context) {
	if err := sessions.Destroy(c.Request.Context(), c.Writer, c.Request); err != nil {
		s.redirectError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// HandleSessionInfo tells the frontend whether this session is signed in.
func (s *Server) HandleSessionInfo(c *gin.Context) {
	store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		s.writeError(c, err)
		return
	}
	tok, err := sessions.AccessToken(store)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"screen_name":   tok.ScreenName,
		"user_id":       tok.UserID,
	})
}

// HandlePinStart begins the out-of-band variant: the consent page shows the
// user a PIN instead of redirecting back.
func (s *Server) HandlePinStart(c *gin.Context) {
	store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		s.writeError(c, err)
		return
	}

	rt, err := s.Exchanger.RequestToken(c.Request.Context(), oauth1.OutOfBand)
	if err != nil {
		s.recordLogin("failed")
		s.writeError(c, err)
		return
	}
	if err := sessions.StorePending(store, rt); err != nil {
		s.writeError(c, err)
		return
	}

	authorizeURL, err := s.Exchanger.AuthorizeURL(rt.Token)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.recordLogin("started")
	c.JSON(http.StatusOK, gin.H{"auth_url": authorizeURL})
}

// HandlePinComplete exchanges the user-typed PIN for an access token and,
// when text is supplied, posts it right away (the original app's combined
// authorize-and-tweet step).
func (s *Server) HandlePinComplete(c *gin.Context) {
	var payload struct {
		Pin  string `json:"pin"`
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Pin) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "pin is required",
		})
		return
	}

	store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		s.writeError(c, err)
		return
	}

	pending, err := sessions.Pending(store)
	if err != nil {
		s.recordLogin("failed")
		s.writeError(c, err)
		return
	}

	at, err := s.Exchanger.AccessToken(c.Request.Context(), pending, strings.TrimSpace(payload.Pin))
	if err != nil {
		if derr := sessions.DiscardPending(store); derr != nil {
			log.Printf("auth: discarding pending token failed: %v", derr)
		}
		s.recordLogin("failed")
		s.writeError(c, err)
		return
	}
	if err := sessions.BindAccessToken(store, at); err != nil {
		s.writeError(c, err)
		return
	}
	s.recordLogin("completed")

	resp := gin.H{"success": true, "screen_name": at.ScreenName}
	if text := strings.TrimSpace(payload.Text); text != "" {
		tweet, err := s.postAndRecord(c, at, text, "")
		if err != nil {
			s.writeError(c, err)
			return
		}
		resp["tweet"] = tweet
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) recordLogin(outcome string) {
	if s.Metrics != nil {
		s.Metrics.RecordLogin(outcome)
	}
}

// postAndRecord posts text as tok's user and, once the platform confirms
// with an id, records the message in local history.
func (s *Server) postAndRecord(c *gin.Context, tok *models.AccessToken, text, mediaID string) (interface{}, error) {
	tweet, err := s.Twitter.CreateTweet(c.Request.Context(), tok, text, mediaID)
	s.recordUpstream("create_tweet", http.StatusCreated, err)
	if err != nil {
		return nil, err
	}

	if s.Messages != nil {
		m := &models.Message{
			ID:         tweet.ID,
			Text:       text,
			CreatedAt:  timeNow(),
			URL:        messageURL(tok.ScreenName, tweet.ID),
			UserID:     tok.UserID,
			ScreenName: tok.ScreenName,
		}
		if err := s.Messages.Insert(c.Request.Context(), m); err != nil {
			// The post succeeded upstream; a history miss is logged, not fatal.
			log.Printf("store: recording message %s failed: %v", tweet.ID, err)
		}
	}
	return gin.H{"id": tweet.ID, "text": text, "screen_name": tok.ScreenName}, nil
}
