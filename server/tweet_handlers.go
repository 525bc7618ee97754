package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kgashok/PlumConfusedOpensource/sessions"
)

const maxMediaBytes = 5 << 20

// HandleCreateTweet posts a message, optionally attaching an uploaded media
// id, and records it in local history once the platform confirms.
func (s *Server) HandleCreateTweet(c *gin.Context) {
	var payload struct {
		Text    string `json:"text"`
		MediaID string `json:"media_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Text) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "text is required",
		})
		return
	}

	tok := accessTokenFrom(c)
	tweet, err := s.postAndRecord(c, tok, strings.TrimSpace(payload.Text), strings.TrimSpace(payload.MediaID))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tweet})
}

// HandleListTweets serves the locally persisted history, newest first.
// Reads never hit the platform.
func (s *Server) HandleListTweets(c *gin.Context) {
	if s.Messages == nil {
		NotImplemented(c, "set database.dsn to enable message history")
		return
	}
	// History is visible to the signed-in user only.
	store, err := sessions.Start(c.Request.Context(), c.Writer, c.Request)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if _, err := sessions.AccessToken(store); err != nil {
		s.writeError(c, err)
		return
	}

	msgs, err := s.Messages.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// HandleDeleteTweet removes the message upstream, then flags it deleted in
// local history.
func (s *Server) HandleDeleteTweet(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "tweet id is required",
		})
		return
	}

	tok := accessTokenFrom(c)
	err := s.Twitter.DeleteTweet(c.Request.Context(), tok, id)
	s.recordUpstream("delete_tweet", http.StatusOK, err)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.Messages != nil {
		if err := s.Messages.MarkDeleted(c.Request.Context(), id); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "deleted": true}})
}

// HandleRetweet reposts a message as the session's user.
func (s *Server) HandleRetweet(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "tweet id is required",
		})
		return
	}

	tok := accessTokenFrom(c)
	err := s.Twitter.Retweet(c.Request.Context(), tok, id)
	s.recordUpstream("retweet", http.StatusOK, err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "retweeted": true}})
}

// HandleUploadMedia pushes an attachment and returns the media id the
// client threads into a subsequent create call.
func (s *Server) HandleUploadMedia(c *gin.Context) {
	fh, err := c.FormFile("media")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "multipart field 'media' is required",
		})
		return
	}
	if fh.Size > maxMediaBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":             "invalid_request",
			"error_description": "media exceeds the size limit",
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(c, err)
		return
	}

	tok := accessTokenFrom(c)
	mediaID, err := s.Twitter.UploadMedia(c.Request.Context(), tok, fh.Filename, data)
	s.recordUpstream("upload_media", http.StatusOK, err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media_id": mediaID})
}
