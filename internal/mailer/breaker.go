// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/gatehouse/internal/logging"
)

var (
	// MailerSendsTotal counts delivery attempts by outcome.
	MailerSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_sends_total",
			Help: "Total number of mail delivery attempts",
		},
		[]string{"outcome"},
	)

	// MailerBreakerState tracks breaker state (0 closed, 1 half-open, 2 open).
	MailerBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailer_breaker_state",
			Help: "Mailer circuit breaker state",
		},
	)
)

// BreakerMailer wraps a Mailer with circuit breaker protection. When the
// underlying provider fails repeatedly the breaker opens and sends are
// rejected fast instead of tying up request handlers on a dead SMTP peer.
type BreakerMailer struct {
	inner Mailer
	cb    *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerMailer wraps inner with a breaker that opens after a 60%
// failure rate over at least 5 requests and probes recovery after 30s.
func NewBreakerMailer(inner Mailer) *BreakerMailer {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "mailer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},

		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Info().
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("mailer breaker state transition")
			MailerBreakerState.Set(breakerStateFloat(to))
		},
	})
	return &BreakerMailer{inner: inner, cb: cb}
}

func (m *BreakerMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	_, err := m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.inner.Send(ctx, to, subject, htmlBody, textBody)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			MailerSendsTotal.WithLabelValues("rejected").Inc()
		} else {
			MailerSendsTotal.WithLabelValues("failure").Inc()
		}
		return err
	}
	MailerSendsTotal.WithLabelValues("success").Inc()
	return nil
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var _ Mailer = (*BreakerMailer)(nil)
