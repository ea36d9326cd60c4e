package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/logger"
	"github.com/weiplanet/data-api-builder/middleware"
	"github.com/weiplanet/data-api-builder/rest"
)

const (
	defaultRestPath    = "/api"
	defaultGraphQLPath = "/graphql"
)

// Server wraps the Gin router and the underlying HTTP server.
type Server struct {
	Router     *gin.Engine
	Config     *config.Config
	httpServer *http.Server
}

// InitializeServer sets up the HTTP server with all routes and middleware.
func InitializeServer(cfg *config.Config, deps *Deps) *Server {
	logger.Info("Initializing HTTP server")

	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.App.AllowedOrigins))
	router.Use(middleware.NewAuth(cfg.JWT.Secret, cfg.JWT.Issuer).Middleware())

	// GraphQL surface: the synthesized schema is served as SDL. Execution
	// happens in the REST engine; GraphQL transports resolve against the
	// same entity metadata.
	if deps.Runtime.Runtime.GraphQL.IsEnabled() {
		graphqlPath := deps.Runtime.Runtime.GraphQL.Path
		if graphqlPath == "" {
			graphqlPath = defaultGraphQLPath
		}
		sdl := deps.SDL
		router.GET(graphqlPath, func(c *gin.Context) {
			c.Data(http.StatusOK, "application/graphql; charset=utf-8", []byte(sdl))
		})
	}

	if deps.Runtime.Runtime.Rest.IsEnabled() && deps.Executor != nil {
		restPath := deps.Runtime.Runtime.Rest.Path
		if restPath == "" {
			restPath = defaultRestPath
		}
		handler := rest.NewHandler(restPath, deps.Store, deps.Resolver, deps.Executor)
		handler.Register(router)
	}

	// Health check endpoints (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		})
	})

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	return &Server{
		Router: router,
		Config: cfg,
	}
}

// StartServer starts the HTTP server.
func (s *Server) StartServer() error {
	addr := fmt.Sprintf(":%d", s.Config.Server.Port)

	logger.WithFields(map[string]interface{}{
		"address":     addr,
		"environment": s.Config.App.Environment,
	}).Info("Starting HTTP server")

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  time.Duration(s.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.Config.Server.IdleTimeout) * time.Second,
	}

	logger.Infof("Server is running on http://localhost%s", addr)
	logger.Infof("Health check: http://localhost%s/health", addr)

	return s.httpServer.ListenAndServe()
}

// GracefulShutdown handles graceful server shutdown.
func (s *Server) GracefulShutdown(ctx context.Context) error {
	logger.Info("Initiating graceful server shutdown")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("HTTP server shutdown failed")
			return err
		}
	}

	logger.Info("Server shutdown completed")
	return nil
}
