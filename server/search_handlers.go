package server

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/models"
)

// HandleSearch runs a live recent-search. When the platform rate-limits the
// call and a local cache exists, previously persisted results are served
// instead, flagged with stale:true so the caller can tell.
func (s *Server) HandleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "query parameter 'q' is required",
		})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))

	tok := accessTokenFrom(c)
	resp, err := s.Twitter.SearchRecent(c.Request.Context(), tok, query, limit)
	s.recordUpstream("search", http.StatusOK, err)
	if err != nil {
		if errors.Is(err, errors.ErrRateLimited) && s.Search != nil {
			s.serveCachedSearch(c, err, limit)
			return
		}
		s.writeError(c, err)
		return
	}

	results := make([]models.SearchResult, 0, len(resp.Data))
	for _, t := range resp.Data {
		results = append(results, models.SearchResult{
			ID:         t.ID,
			Text:       t.Text,
			CreatedAt:  t.CreatedAt,
			AuthorID:   t.AuthorID,
			ScreenName: resp.Username(t.AuthorID),
		})
	}
	if s.Search != nil {
		if err := s.Search.UpsertAll(c.Request.Context(), results); err != nil {
			// Caching is best effort; the live result still goes out.
			log.Printf("store: caching search results failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": results, "stale": false})
}

// serveCachedSearch downgrades a rate-limited live search to previously
// persisted results.
func (s *Server) serveCachedSearch(c *gin.Context, cause error, limit int) {
	cached, err := s.Search.ListRecent(c.Request.Context(), limit)
	if err != nil {
		// Cache unavailable too; surface the original rate limit.
		s.writeError(c, cause)
		return
	}
	if s.Metrics != nil {
		s.Metrics.RecordStaleServed()
	}

	resp := errors.ToResponse(cause)
	c.JSON(http.StatusOK, gin.H{
		"data":        cached,
		"stale":       true,
		"retry_after": resp.RetryAfter,
	})
}
