package server

import (
	"context"
	"time"

	"github.com/weiplanet/data-api-builder/logger"
)

// Lifecycle manages startup and shutdown of long-lived resources.
type Lifecycle struct {
	Deps *Deps
	Srv  *Server
}

// NewLifecycle creates a new lifecycle manager.
func NewLifecycle(deps *Deps, srv *Server) *Lifecycle {
	return &Lifecycle{Deps: deps, Srv: srv}
}

// Shutdown will attempt to gracefully stop the HTTP server and close the
// database and Redis connections.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	logger.Info("Lifecycle: shutting down resources")

	// First shutdown HTTP server
	if l.Srv != nil {
		if err := l.Srv.GracefulShutdown(ctx); err != nil {
			logger.WithError(err).Error("Lifecycle: server graceful shutdown failed")
		}
	}

	if l.Deps != nil {
		if l.Deps.Introspector != nil {
			if err := l.Deps.Introspector.Close(); err != nil {
				logger.WithError(err).Error("Lifecycle: failed to close database")
			}
		}
		if l.Deps.Redis != nil {
			if err := l.Deps.Redis.Close(); err != nil {
				logger.WithError(err).Error("Lifecycle: failed to close Redis")
			}
		}
	}

	// Wait briefly to let deferred logs flush
	time.Sleep(200 * time.Millisecond)

	logger.Info("Lifecycle: shutdown complete")
	return nil
}
