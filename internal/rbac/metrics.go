// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package rbac

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoleGrantsTotal counts role-permission grants.
	RoleGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rbac_role_grants_total",
			Help: "Total number of role-permission grants",
		},
	)

	// RoleRevocationsTotal counts role-permission revocations.
	RoleRevocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rbac_role_revocations_total",
			Help: "Total number of role-permission revocations",
		},
	)

	// RoleAssignmentsTotal counts principal-role assignments.
	RoleAssignmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rbac_role_assignments_total",
			Help: "Total number of principal-role assignments",
		},
	)
)
