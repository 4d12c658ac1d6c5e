package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/mkarpenko/pairchat/internal/config"
	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/handlers"
	"github.com/mkarpenko/pairchat/internal/metrics"
	"github.com/mkarpenko/pairchat/internal/middleware"
	"github.com/mkarpenko/pairchat/internal/presence"
	"github.com/mkarpenko/pairchat/internal/ws"
	"github.com/mkarpenko/pairchat/pkg/auth"
)

// SetupRouter wires middleware and the API surface. Wrong methods on known
// paths return 405, which is part of the HTTP contract.
func SetupRouter(cfg config.Config, db *database.Database, sessions *auth.SessionManager, hub *ws.Hub, tracker *presence.Tracker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(middleware.CORS(cfg.Env, cfg.AllowedOrigin))
	r.Use(middleware.RateLimit(rate.Every(time.Second/20), 40))

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authH := handlers.NewAuthHandler(db, sessions, cfg)
	convH := handlers.NewConversationHandler(db, tracker)
	msgH := handlers.NewMessageHandler(db, hub)
	userH := handlers.NewUserHandler(db, tracker)
	wsH := handlers.NewWebSocketHandler(hub, cfg.AllowedOrigin)

	api := r.Group("/api")

	api.POST("/auth/signup", authH.Signup)
	api.POST("/auth/login", authH.Login)
	// Logout only clears the cookie, so it works without a valid session.
	api.POST("/auth/logout", authH.Logout)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(sessions))

	authed.GET("/auth/me", authH.Me)

	authed.GET("/conversations", convH.List)
	authed.POST("/conversations", convH.Create)

	authed.GET("/messages/:conversationId", msgH.List)
	authed.POST("/messages/:conversationId", msgH.Send)

	authed.GET("/users/search", userH.Search)
	authed.POST("/users/me/avatar", userH.UpdateAvatar)

	r.GET("/ws", middleware.AuthMiddleware(sessions), wsH.Handle)

	return r
}
