// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package rbac implements the role/permission graph: role lifecycle,
// role-permission grants, principal-role assignments, and the isAuthorized
// existence check the decision engine runs per request.
package rbac

import (
	"context"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/store"
)

// Graph answers role/permission questions for the decision engine and
// manages the underlying join records.
type Graph struct {
	roles      store.RoleStore
	perms      store.PermissionStore
	principals store.PrincipalStore
}

// NewGraph constructs a Graph.
func NewGraph(roles store.RoleStore, perms store.PermissionStore, principals store.PrincipalStore) *Graph {
	return &Graph{roles: roles, perms: perms, principals: principals}
}

// CreateRole validates the uppercase name convention and persists the role.
func (g *Graph) CreateRole(ctx context.Context, name, description string) (*models.Role, error) {
	if err := models.ValidateRoleName(name); err != nil {
		return nil, err
	}
	role, err := g.roles.Create(ctx, &models.Role{Name: name, Description: description})
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("role", name).Msg("role created")
	return role, nil
}

// UpdateRole renames or re-describes a role.
func (g *Graph) UpdateRole(ctx context.Context, id int64, name, description string) (*models.Role, error) {
	if err := models.ValidateRoleName(name); err != nil {
		return nil, err
	}
	role, err := g.roles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	role.Name = name
	role.Description = description
	if err := g.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role. The store rejects deletion while any principal
// holds the role.
func (g *Graph) DeleteRole(ctx context.Context, id int64) error {
	return g.roles.Delete(ctx, id)
}

// GetRole fetches a role by ID.
func (g *Graph) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	return g.roles.FindByID(ctx, id)
}

// GetRoleByName fetches a role by name.
func (g *Graph) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	return g.roles.FindByName(ctx, name)
}

// ListRoles returns all roles.
func (g *Graph) ListRoles(ctx context.Context) ([]models.Role, error) {
	return g.roles.List(ctx)
}

// Grant adds a permission to a role, idempotently: granting twice leaves
// exactly one join record.
func (g *Graph) Grant(ctx context.Context, roleID, permissionID int64) error {
	if _, err := g.roles.FindByID(ctx, roleID); err != nil {
		return err
	}
	if _, err := g.perms.FindByID(ctx, permissionID); err != nil {
		return err
	}
	if err := g.roles.Grant(ctx, roleID, permissionID); err != nil {
		return err
	}
	RoleGrantsTotal.Inc()
	return nil
}

// Revoke removes the given permissions from a role in bulk.
func (g *Graph) Revoke(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := g.roles.FindByID(ctx, roleID); err != nil {
		return err
	}
	if err := g.roles.RevokeAll(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	RoleRevocationsTotal.Add(float64(len(permissionIDs)))
	return nil
}

// Replace atomically rewrites a role's grant set. With clearExisting the old
// grants are dropped and the given set installed; partial failure leaves the
// prior state intact.
func (g *Graph) Replace(ctx context.Context, roleID int64, permissionIDs []int64, clearExisting bool) error {
	if _, err := g.roles.FindByID(ctx, roleID); err != nil {
		return err
	}
	for _, pid := range permissionIDs {
		if _, err := g.perms.FindByID(ctx, pid); err != nil {
			return apperr.NotFound("permission %d not found", pid)
		}
	}
	return g.roles.Replace(ctx, roleID, permissionIDs, clearExisting)
}

// HasPermission reports whether the role holds the permission.
func (g *Graph) HasPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	return g.roles.HasPermission(ctx, roleID, permissionID)
}

// EffectivePermissions returns the union of permissions across the named
// roles, as the decision engine and diagnostics see them.
func (g *Graph) EffectivePermissions(ctx context.Context, roleNames []string) ([]models.Permission, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}
	return g.roles.PermissionsForRoles(ctx, roleNames)
}

// IsAuthorized reports whether any of the named roles holds a permission
// with the given method and action. An empty role set is always false and
// performs no store query.
func (g *Graph) IsAuthorized(ctx context.Context, roleNames []string, method, action string) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}
	return g.roles.AnyRoleHasAction(ctx, roleNames, method, action)
}

// AssignRole grants a role to a principal, idempotently. assignedBy is the
// internal ID of the acting principal, zero for bootstrap.
func (g *Graph) AssignRole(ctx context.Context, principalID, roleID, assignedBy int64) error {
	if _, err := g.roles.FindByID(ctx, roleID); err != nil {
		return err
	}
	if err := g.principals.AssignRole(ctx, principalID, roleID, assignedBy); err != nil {
		return err
	}
	RoleAssignmentsTotal.Inc()
	return nil
}

// UnassignRole removes a role from a principal.
func (g *Graph) UnassignRole(ctx context.Context, principalID, roleID int64) error {
	return g.principals.UnassignRole(ctx, principalID, roleID)
}
