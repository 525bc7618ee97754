package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HandleGenerateText asks the generation API for message inspiration.
func (s *Server) HandleGenerateText(c *gin.Context) {
	prompt, ok := s.generationPrompt(c)
	if !ok {
		return
	}

	text, err := s.AI.GenerateText(c.Request.Context(), prompt)
	s.recordAI("text", err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

// HandleGenerateImage asks the generation API for an image to attach.
func (s *Server) HandleGenerateImage(c *gin.Context) {
	prompt, ok := s.generationPrompt(c)
	if !ok {
		return
	}

	imageURL, err := s.AI.GenerateImage(c.Request.Context(), prompt)
	s.recordAI("image", err)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": imageURL})
}

// generationPrompt validates the request and reports whether handling
// should proceed.
func (s *Server) generationPrompt(c *gin.Context) (string, bool) {
	if s.AI == nil {
		NotImplemented(c, "set ai.api_key to enable generation")
		return "", false
	}
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Prompt) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "prompt is required",
		})
		return "", false
	}
	return strings.TrimSpace(payload.Prompt), true
}

func (s *Server) recordAI(kind string, err error) {
	if s.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.Metrics.RecordAICall(kind, outcome)
}
