package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"carelink-chat/config"
	"carelink-chat/internal/handler"
	"carelink-chat/internal/middleware"
	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"
	"carelink-chat/internal/websocket"
	"carelink-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Attachment   *handler.AttachmentHandler
	WebSocket    *websocket.Handler
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouteOptions struct {
	Auth           *services.AuthService
	MessageLimiter middleware.MessageLimiter
	Health         map[string]HealthCheck
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, opts RouteOptions) {
	s.engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(s.logger),
		middleware.ErrorHandler(s.logger),
	)

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})
	s.engine.GET("/health", healthHandler(opts.Health))

	v1 := s.engine.Group("/v1")
	if handlers.WebSocket != nil {
		v1.GET("/ws", handlers.WebSocket.Connect)
	}

	authed := v1.Group("", middleware.AuthMiddleware(opts.Auth))
	{
		authed.POST("/conversations", handlers.Conversation.Create)
		authed.GET("/conversations", handlers.Conversation.List)
		authed.GET("/conversations/:id", handlers.Conversation.GetByID)
		authed.GET("/contacts", handlers.Conversation.Contacts)

		authed.GET("/conversations/:id/messages", handlers.Message.List)
		authed.POST("/conversations/:id/messages", middleware.MessageRateLimitMiddleware(opts.MessageLimiter, s.logger), handlers.Message.Send)
		authed.POST("/conversations/:id/read", handlers.Message.MarkRead)
		authed.DELETE("/messages/:id", handlers.Message.Delete)

		if handlers.Attachment != nil {
			authed.POST("/attachments", handlers.Attachment.Presign)
		}
	}
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, httpdto.Response[gin.H]{Success: false, Data: status, Code: "UNHEALTHY"})
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
