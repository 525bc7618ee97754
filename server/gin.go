package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewGinEngine builds the router with all application routes.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())

	// OAuth login flow (session state, no token required)
	r.GET("/auth", s.HandleBeginLogin)
	r.GET("/callback", s.HandleCallback)
	r.GET("/logout", s.HandleLogout)
	r.GET("/api/session", s.HandleSessionInfo)

	// PIN (out-of-band) login variant
	r.POST("/api/pin/start", s.HandlePinStart)
	r.POST("/api/pin/complete", s.HandlePinComplete)

	// Content operations require a bound access token
	api := r.Group("/api")
	api.Use(s.RequireAuth())
	api.POST("/tweets", s.HandleCreateTweet)
	api.DELETE("/tweets/:id", s.HandleDeleteTweet)
	api.POST("/tweets/:id/retweet", s.HandleRetweet)
	api.GET("/search", s.HandleSearch)
	api.POST("/media", s.HandleUploadMedia)
	api.POST("/generate/text", s.HandleGenerateText)
	api.POST("/generate/image", s.HandleGenerateImage)

	// History reads come from the local store, not the platform
	r.GET("/api/tweets", s.HandleListTweets)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.Config != nil && s.Config.StaticDir != "" {
		r.Static("/public", s.Config.StaticDir)
		r.StaticFile("/", s.Config.StaticDir+"/index.html")
	}

	return r
}
