// Package server exposes extraction over HTTP: synchronous uploads, queued
// jobs, and a WebSocket endpoint that streams page progress.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ListenAndServe serves until ctx is canceled, then shuts down gracefully
// within config.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, config Config) error {
	if config.Port < 1 || config.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", config.Port)
	}
	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// WebSocket connections outlive any fixed write timeout; extraction
		// requests are bounded by s.timeout instead.
		ReadTimeout: s.timeout,
	}

	if s.rateLimiter != nil {
		go s.pruneLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", httpServer.Addr, "version", s.version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("starting graceful shutdown", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("graceful shutdown completed")
	return nil
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Prune(); n > 0 {
				s.logger.Debug("pruned idle rate limit clients", "count", n)
			}
		}
	}
}
