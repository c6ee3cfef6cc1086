// Lodgekeeper - Property Management and Channel Synchronization
// Copyright 2026 Lodgekeeper Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lodgekeeper/lodgekeeper

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lodgekeeper/lodgekeeper/internal/config"
	"github.com/lodgekeeper/lodgekeeper/internal/logging"
)

// Server runs the HTTP listener under the supervision tree.
type Server struct {
	srv *http.Server
}

// NewServer builds the listener from server config and a wired router.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Timeout,
			WriteTimeout:      cfg.Timeout,
			IdleTimeout:       2 * cfg.Timeout,
		},
	}
}

// Serve blocks until the context is canceled, then drains in-flight
// requests. It satisfies the supervision tree's service contract.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return ctx.Err()
	}
}

// String identifies the server in supervisor logs.
func (s *Server) String() string {
	return "http-server"
}
