package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mimicbot/internal/generator"
	"mimicbot/internal/handler"
	"mimicbot/internal/listen"
	"mimicbot/internal/middleware"
	"mimicbot/internal/repository"
	"mimicbot/internal/service"
	"mimicbot/internal/trainer"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	AuthService service.AuthService
	Ingest      *service.IngestService
	Manager     *trainer.Manager
	Coordinator *generator.Coordinator
	Gate        *listen.Gate
	Channels    repository.ChannelRepository
	Communities repository.CommunityRepository
}

type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

func NewServer(baseCtx context.Context, deps Deps, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		logger: logger,
	}

	s.setupRoutes(baseCtx, deps)

	return s
}

func (s *Server) setupRoutes(baseCtx context.Context, deps Deps) {
	authHandler := handler.NewAuthHandler(deps.AuthService, s.logger)
	trainingHandler := handler.NewTrainingHandler(deps.Manager, baseCtx, s.logger)
	generateHandler := handler.NewGenerateHandler(deps.Coordinator, deps.Manager, s.logger)
	channelsHandler := handler.NewChannelsHandler(deps.Gate, deps.Channels, deps.Communities, s.logger)
	eventsHandler := handler.NewEventsHandler(deps.Ingest, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(deps.AuthService.JWTSecret(), s.logger))
	{
		authRequired.POST("/communities/:id/train", trainingHandler.Start)
		authRequired.GET("/communities/:id/train", trainingHandler.Progress)
		authRequired.POST("/communities/:id/generate", generateHandler.Generate)
		authRequired.GET("/communities/:id/channels", channelsHandler.List)
		authRequired.PUT("/communities/:id/channels/:channelID", channelsHandler.SetListen)

		events := authRequired.Group("/events")
		events.POST("/message", eventsHandler.MessageCreated)
		events.POST("/message-edited", eventsHandler.MessageEdited)
		events.POST("/message-deleted", eventsHandler.MessageDeleted)
		events.POST("/thread-deleted", eventsHandler.ThreadDeleted)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
