package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/kgashok/PlumConfusedOpensource/ai"
	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/metrics"
	"github.com/kgashok/PlumConfusedOpensource/models"
	"github.com/kgashok/PlumConfusedOpensource/oauth1"
	"github.com/kgashok/PlumConfusedOpensource/store"
	"github.com/kgashok/PlumConfusedOpensource/twitter"
)

// Server wires the OAuth flow, the content-API dispatcher, persistence and
// the generation collaborator behind the HTTP surface.
type Server struct {
	Config    *AppConfig
	Exchanger *oauth1.Exchanger
	Twitter   *twitter.Client
	AI        *ai.Client
	Messages  *store.MessageStore
	Search    *store.SearchStore
	Metrics   *metrics.Collector
}

// NewServer assembles a Server from configuration. Nil stores and a nil AI
// client are allowed; the corresponding endpoints answer not_implemented.
func NewServer(cfg *AppConfig, messages *store.MessageStore, search *store.SearchStore, collector *metrics.Collector) *Server {
	signer := &oauth1.Signer{
		Consumer: models.ConsumerCredential{Key: cfg.ConsumerKey(), Secret: cfg.ConsumerSecret()},
	}

	endpoints := oauth1.TwitterEndpoints()
	if cfg.OAuth.RequestTokenURL != "" {
		endpoints.RequestTokenURL = cfg.OAuth.RequestTokenURL
	}
	if cfg.OAuth.AuthorizeURL != "" {
		endpoints.AuthorizeURL = cfg.OAuth.AuthorizeURL
	}
	if cfg.OAuth.AccessTokenURL != "" {
		endpoints.AccessTokenURL = cfg.OAuth.AccessTokenURL
	}

	var limiter *rate.Limiter
	if cfg.Platform.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Platform.RatePerSecond), 1)
	}

	s := &Server{
		Config:    cfg,
		Exchanger: &oauth1.Exchanger{Signer: signer, Endpoints: endpoints},
		Twitter: &twitter.Client{
			Signer:        signer,
			BaseURL:       cfg.Platform.BaseURL,
			UploadBaseURL: cfg.Platform.UploadBaseURL,
			Limiter:       limiter,
		},
		Messages: messages,
		Search:   search,
		Metrics:  collector,
	}
	if cfg.AI.APIKey != "" {
		s.AI = &ai.Client{APIKey: cfg.AI.APIKey, BaseURL: cfg.AI.BaseURL, Model: cfg.AI.Model}
	}
	return s
}

// writeError maps err onto the taxonomy and writes the structured JSON
// payload. Upstream detail is preserved verbatim for diagnosis.
func (s *Server) writeError(c *gin.Context, err error) {
	resp := errors.ToResponse(err)
	body := gin.H{
		"error":             resp.Error.Error(),
		"error_description": resp.Description,
	}
	if resp.Detail != "" {
		body["detail"] = json.RawMessage(rawOrQuoted(resp.Detail))
	}
	if resp.RetryAfter > 0 {
		body["retry_after"] = resp.RetryAfter
	}
	c.AbortWithStatusJSON(resp.StatusCode, body)
}

// redirectError sends authentication failures back to the landing page
// with an error query parameter, per the original application's behavior.
func (s *Server) redirectError(c *gin.Context, err error) {
	resp := errors.ToResponse(err)
	c.Redirect(http.StatusFound, "/?error="+url.QueryEscape(resp.Error.Error()))
}

// rawOrQuoted passes JSON upstream bodies through untouched and quotes
// anything else so the payload stays valid JSON.
func rawOrQuoted(detail string) []byte {
	if json.Valid([]byte(detail)) {
		return []byte(detail)
	}
	quoted, _ := json.Marshal(detail)
	return quoted
}

// recordUpstream feeds the metrics collector from a dispatcher result.
func (s *Server) recordUpstream(operation string, successCode int, err error) {
	if s.Metrics == nil {
		return
	}
	if err == nil {
		s.Metrics.RecordUpstream(operation, successCode)
		return
	}
	if errors.Is(err, errors.ErrRateLimited) {
		s.Metrics.RecordRateLimited(operation)
	}
	var ue *errors.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode > 0 {
		s.Metrics.RecordUpstream(operation, ue.StatusCode)
	}
}

// NotImplemented answers endpoints whose collaborator is not configured.
func NotImplemented(c *gin.Context, description string) {
	c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{
		"error":             "not_implemented",
		"error_description": description,
	})
}

// timeNow is stubbed in tests.
var timeNow = time.Now

// messageURL is the public permalink for a posted message.
func messageURL(screenName, id string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", screenName, id)
}
