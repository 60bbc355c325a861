// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionCacheHitsTotal counts action-cache hits.
	ActionCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_action_cache_hits_total",
			Help: "Total number of action cache hits",
		},
	)

	// ActionCacheMissesTotal counts action-cache misses.
	ActionCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_action_cache_misses_total",
			Help: "Total number of action cache misses",
		},
	)

	// ActionResolutionsTotal counts resolutions by outcome
	// (exact, pattern, miss).
	ActionResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_action_resolutions_total",
			Help: "Total number of action resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// PermissionsRegisteredTotal counts permission registrations.
	PermissionsRegisteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_permissions_registered_total",
			Help: "Total number of permissions registered",
		},
	)
)
