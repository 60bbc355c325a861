// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts authorization decisions by outcome and the
	// source the action was resolved from.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"outcome", "source"},
	)

	// AuthenticationsTotal counts Authenticate middleware outcomes.
	AuthenticationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_authentications_total",
			Help: "Total number of authentication middleware outcomes",
		},
		[]string{"outcome"},
	)

	// DecisionDuration observes end-to-end decision latency, resolver
	// plus graph check.
	DecisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Authorization decision latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)
