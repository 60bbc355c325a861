// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/gatehouse/internal/logging"
)

// HTTPService runs an http.Server under suture supervision. Serve blocks
// until the listener fails or the context is canceled, then shuts down
// gracefully within the timeout.
type HTTPService struct {
	addr            string
	handler         http.Handler
	readTimeout     time.Duration
	shutdownTimeout time.Duration
}

// NewHTTPService builds the supervised HTTP server service.
func NewHTTPService(addr string, handler http.Handler, timeout time.Duration) *HTTPService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPService{
		addr:            addr,
		handler:         handler,
		readTimeout:     timeout,
		shutdownTimeout: 10 * time.Second,
	}
}

// Serve implements suture.Service.
func (s *HTTPService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.readTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("supervisor: http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP server shutdown incomplete, closing")
		_ = srv.Close()
	}
	return ctx.Err()
}

func (s *HTTPService) String() string {
	return "http-server"
}
