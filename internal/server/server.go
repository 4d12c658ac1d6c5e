package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/mkarpenko/pairchat/internal/config"
	"github.com/mkarpenko/pairchat/internal/database"
	"github.com/mkarpenko/pairchat/internal/presence"
	"github.com/mkarpenko/pairchat/internal/ws"
	"github.com/mkarpenko/pairchat/pkg/auth"
)

type Server struct {
	Router   *gin.Engine
	DB       *database.Database
	Redis    *redis.Client
	Hub      *ws.Hub
	Sessions *auth.SessionManager
	cfg      config.Config
}

// NewServer connects every dependency and assembles the router. Fatal on
// unreachable Postgres or Redis: the service cannot degrade without them.
func NewServer(cfg config.Config) *Server {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("postgres migrate")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}

	sessions := auth.NewSessionManager(cfg.JWTSecret, cfg.SessionTTL)
	tracker := presence.NewTracker(rdb)
	hub := ws.NewHub(tracker)
	go hub.Run()

	router := SetupRouter(cfg, db, sessions, hub, tracker)

	return &Server{
		Router:   router,
		DB:       db,
		Redis:    rdb,
		Hub:      hub,
		Sessions: sessions,
		cfg:      cfg,
	}
}

func (s *Server) Run() {
	log.Info().Str("port", s.cfg.Port).Msg("server starting")
	if err := s.Router.Run(":" + s.cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
