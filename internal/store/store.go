// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package store provides persistence for principals, roles, permissions, the
// join tables, and password-reset tokens.
//
// Each store is an interface with a PostgreSQL (pgx/v5) implementation for
// production and an in-memory implementation for tests. The revoked-token
// blacklist lives in internal/token; it has different durability and lookup
// requirements than the relational entities here.
package store

import (
	"context"
	"time"

	"github.com/tomtom215/gatehouse/internal/models"
)

// PrincipalStore persists principals and their role assignments.
type PrincipalStore interface {
	// FindByID fetches a principal by internal ID.
	FindByID(ctx context.Context, id int64) (*models.Principal, error)

	// FindByPublicID fetches a principal by external UUID.
	FindByPublicID(ctx context.Context, publicID string) (*models.Principal, error)

	// FindByEmail fetches a principal by email.
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)

	// Create persists a new principal, generating PublicID when empty.
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)

	// Save updates the mutable fields (email, password hash, active flag).
	Save(ctx context.Context, p *models.Principal) error

	// RoleNames returns the names of the roles the principal holds, ordered
	// by assignment time.
	RoleNames(ctx context.Context, principalID int64) ([]string, error)

	// AssignRole adds a principal-role join; idempotent on the
	// (principal, role) pair. assignedBy is zero for system bootstrap.
	AssignRole(ctx context.Context, principalID, roleID, assignedBy int64) error

	// UnassignRole removes a principal-role join. Returns apperr.ErrNotFound
	// if the assignment does not exist.
	UnassignRole(ctx context.Context, principalID, roleID int64) error
}

// RoleStore persists roles and their permission grants.
type RoleStore interface {
	FindByID(ctx context.Context, id int64) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)

	// Create persists a new role. Returns apperr.ErrConflict on a duplicate name.
	Create(ctx context.Context, role *models.Role) (*models.Role, error)

	// Update persists name/description changes.
	Update(ctx context.Context, role *models.Role) error

	// Delete removes a role. Returns apperr.ErrConflict while any principal
	// holds the role, apperr.ErrNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// HolderCount returns how many principals hold the role.
	HolderCount(ctx context.Context, id int64) (int, error)

	// Grant adds a role-permission join; idempotent on the pair.
	Grant(ctx context.Context, roleID, permissionID int64) error

	// RevokeAll removes the given permission joins from the role.
	RevokeAll(ctx context.Context, roleID int64, permissionIDs []int64) error

	// Replace atomically clears (optionally) and re-adds grants. Partial
	// failure leaves the prior state intact.
	Replace(ctx context.Context, roleID int64, permissionIDs []int64, clearExisting bool) error

	// HasPermission reports whether the role holds the permission.
	HasPermission(ctx context.Context, roleID, permissionID int64) (bool, error)

	// PermissionsForRoles returns the union of permissions granted to the
	// named roles.
	PermissionsForRoles(ctx context.Context, roleNames []string) ([]models.Permission, error)

	// AnyRoleHasAction reports whether any of the named roles holds a
	// permission with the given method and action. Callers must short-circuit
	// empty roleNames before reaching the store.
	AnyRoleHasAction(ctx context.Context, roleNames []string, method, action string) (bool, error)
}

// PermissionStore persists the permission catalog triples.
type PermissionStore interface {
	FindByID(ctx context.Context, id int64) (*models.Permission, error)

	// FindExact fetches the permission with the exact (method, route) pair.
	FindExact(ctx context.Context, method, route string) (*models.Permission, error)

	// FindTriple fetches the permission with the exact (method, route, action) triple.
	FindTriple(ctx context.Context, method, route, action string) (*models.Permission, error)

	// ListByMethod returns all permissions for the method in stored order.
	ListByMethod(ctx context.Context, method string) ([]models.Permission, error)

	List(ctx context.Context) ([]models.Permission, error)

	// Create persists a new permission triple.
	Create(ctx context.Context, p *models.Permission) (*models.Permission, error)

	// Delete removes a permission and its role grants.
	Delete(ctx context.Context, id int64) error
}

// ResetTokenStore persists single-use password-reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, t *models.PasswordResetToken) error

	// FindByToken fetches a reset token by value regardless of state.
	FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error)

	// MarkUsed sets the used flag and timestamp. Returns apperr.ErrConflict
	// if the token was already used.
	MarkUsed(ctx context.Context, id int64, usedAt time.Time) error

	// DeleteExpired purges tokens past their expiry. Returns rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
