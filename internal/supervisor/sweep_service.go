// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package supervisor

import (
	"context"
	"time"

	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/store"
	"github.com/tomtom215/gatehouse/internal/token"
)

// SweepService periodically purges expired revocation records and expired
// password-reset tokens. Runs in the maintenance layer; a sweep failure is
// logged and retried on the next tick rather than crashing the service.
type SweepService struct {
	blacklist   token.Blacklist
	resetTokens store.ResetTokenStore
	interval    time.Duration
}

// NewSweepService builds the sweep. interval defaults to one hour.
func NewSweepService(bl token.Blacklist, resetTokens store.ResetTokenStore, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepService{blacklist: bl, resetTokens: resetTokens, interval: interval}
}

// Serve implements suture.Service.
func (s *SweepService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweepService) sweep(ctx context.Context) {
	swept, err := s.blacklist.CleanupExpired(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("blacklist sweep failed")
	} else if swept > 0 {
		logging.Info().Int("count", swept).Msg("expired revocation records swept")
	}

	removed, err := s.resetTokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		logging.Error().Err(err).Msg("reset token sweep failed")
	} else if removed > 0 {
		logging.Info().Int("count", removed).Msg("expired reset tokens swept")
	}
}

func (s *SweepService) String() string {
	return "maintenance-sweep"
}
