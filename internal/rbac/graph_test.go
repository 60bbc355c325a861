// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/store"
)

type graphFixture struct {
	graph      *Graph
	roles      *store.MemoryRoleStore
	perms      *store.MemoryPermissionStore
	principals *store.MemoryPrincipalStore
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	perms := store.NewMemoryPermissionStore()
	roles := store.NewMemoryRoleStore(perms)
	principals := store.NewMemoryPrincipalStore(roles)
	roles.Bind(principals)
	return &graphFixture{
		graph:      NewGraph(roles, perms, principals),
		roles:      roles,
		perms:      perms,
		principals: principals,
	}
}

func (f *graphFixture) mustRole(t *testing.T, name string) *models.Role {
	t.Helper()
	role, err := f.graph.CreateRole(context.Background(), name, "")
	if err != nil {
		t.Fatalf("create role %s: %v", name, err)
	}
	return role
}

func (f *graphFixture) mustPermission(t *testing.T, method, route, action string) *models.Permission {
	t.Helper()
	perm, err := f.perms.Create(context.Background(), &models.Permission{
		Method: method,
		Route:  route,
		Action: action,
	})
	if err != nil {
		t.Fatalf("create permission %s: %v", action, err)
	}
	return perm
}

func (f *graphFixture) mustPrincipal(t *testing.T, email string) *models.Principal {
	t.Helper()
	p, err := f.principals.Create(context.Background(), &models.Principal{
		Email:        email,
		PasswordHash: "x",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("create principal %s: %v", email, err)
	}
	return p
}

func TestCreateRoleRejectsLowercase(t *testing.T) {
	f := newGraphFixture(t)

	for _, name := range []string{"admin", "Admin", "1ADMIN", ""} {
		if _, err := f.graph.CreateRole(context.Background(), name, ""); !errors.Is(err, apperr.ErrBadRequest) {
			t.Errorf("name %q: err = %v, want ErrBadRequest", name, err)
		}
	}
	if _, err := f.graph.CreateRole(context.Background(), "ADMIN_L2", ""); err != nil {
		t.Errorf("ADMIN_L2: %v", err)
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	perm := f.mustPermission(t, "GET", "/articles", "article:list")

	if err := f.graph.Grant(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if err := f.graph.Grant(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("second grant: %v", err)
	}

	effective, err := f.graph.EffectivePermissions(ctx, []string{"EDITOR"})
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if len(effective) != 1 {
		t.Errorf("len(effective) = %d, want 1", len(effective))
	}
}

func TestGrantUnknownRoleOrPermission(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	perm := f.mustPermission(t, "GET", "/articles", "article:list")

	if err := f.graph.Grant(ctx, role.ID+99, perm.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown role: err = %v, want ErrNotFound", err)
	}
	if err := f.graph.Grant(ctx, role.ID, perm.ID+99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown permission: err = %v, want ErrNotFound", err)
	}
}

func TestIsAuthorized(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	perm := f.mustPermission(t, "GET", "/articles", "article:list")
	if err := f.graph.Grant(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	tests := []struct {
		name   string
		roles  []string
		method string
		action string
		want   bool
	}{
		{"granted", []string{"EDITOR"}, "GET", "article:list", true},
		{"granted among several roles", []string{"VIEWER", "EDITOR"}, "GET", "article:list", true},
		{"wrong action", []string{"EDITOR"}, "GET", "article:create", false},
		{"wrong method", []string{"EDITOR"}, "POST", "article:list", false},
		{"unknown role", []string{"VIEWER"}, "GET", "article:list", false},
		{"empty role set", nil, "GET", "article:list", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.graph.IsAuthorized(ctx, tt.roles, tt.method, tt.action)
			if err != nil {
				t.Fatalf("IsAuthorized: %v", err)
			}
			if ok != tt.want {
				t.Errorf("IsAuthorized = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestIsAuthorizedEmptyRoleSetSkipsStore(t *testing.T) {
	// Nil stores prove the empty role set short-circuits before any query.
	g := NewGraph(nil, nil, nil)

	ok, err := g.IsAuthorized(context.Background(), nil, "GET", "article:list")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Error("empty role set authorized")
	}
}

func TestReplaceGrantSet(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	list := f.mustPermission(t, "GET", "/articles", "article:list")
	create := f.mustPermission(t, "POST", "/articles", "article:create")
	del := f.mustPermission(t, "DELETE", "/articles/:id", "article:delete")

	if err := f.graph.Grant(ctx, role.ID, list.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.graph.Replace(ctx, role.ID, []int64{create.ID, del.ID}, true); err != nil {
		t.Fatalf("replace: %v", err)
	}

	effective, err := f.graph.EffectivePermissions(ctx, []string{"EDITOR"})
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if len(effective) != 2 {
		t.Fatalf("len(effective) = %d, want 2", len(effective))
	}
	for _, p := range effective {
		if p.Action == "article:list" {
			t.Error("replaced grant still effective")
		}
	}
}

func TestReplaceUnknownPermissionLeavesGrantsIntact(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	list := f.mustPermission(t, "GET", "/articles", "article:list")
	if err := f.graph.Grant(ctx, role.ID, list.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	err := f.graph.Replace(ctx, role.ID, []int64{list.ID + 99}, true)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	ok, err := f.graph.IsAuthorized(ctx, []string{"EDITOR"}, "GET", "article:list")
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if !ok {
		t.Error("failed replace dropped the existing grant")
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	list := f.mustPermission(t, "GET", "/articles", "article:list")
	create := f.mustPermission(t, "POST", "/articles", "article:create")
	for _, p := range []*models.Permission{list, create} {
		if err := f.graph.Grant(ctx, role.ID, p.ID); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}

	if held, err := f.graph.HasPermission(ctx, role.ID, list.ID); err != nil || !held {
		t.Fatalf("HasPermission before revoke = (%v, %v), want (true, nil)", held, err)
	}
	if err := f.graph.Revoke(ctx, role.ID, []int64{list.ID}); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if held, err := f.graph.HasPermission(ctx, role.ID, list.ID); err != nil || held {
		t.Fatalf("HasPermission after revoke = (%v, %v), want (false, nil)", held, err)
	}
	effective, err := f.graph.EffectivePermissions(ctx, []string{"EDITOR"})
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if len(effective) != 1 || effective[0].Action != "article:create" {
		t.Errorf("effective = %+v, want only article:create", effective)
	}
}

func TestDeleteRoleHeldByPrincipal(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	p := f.mustPrincipal(t, "alice@example.com")

	if err := f.graph.AssignRole(ctx, p.ID, role.ID, 0); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := f.graph.DeleteRole(ctx, role.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("delete held role: err = %v, want ErrConflict", err)
	}

	if err := f.graph.UnassignRole(ctx, p.ID, role.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if err := f.graph.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("delete after unassign: %v", err)
	}
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")
	p := f.mustPrincipal(t, "alice@example.com")

	if err := f.graph.AssignRole(ctx, p.ID, role.ID, 0); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if err := f.graph.AssignRole(ctx, p.ID, role.ID, 0); err != nil {
		t.Fatalf("second assign: %v", err)
	}

	names, err := f.principals.RoleNames(ctx, p.ID)
	if err != nil {
		t.Fatalf("role names: %v", err)
	}
	if len(names) != 1 || names[0] != "EDITOR" {
		t.Errorf("names = %v, want [EDITOR]", names)
	}
}

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()
	f := newGraphFixture(t)
	role := f.mustRole(t, "EDITOR")

	updated, err := f.graph.UpdateRole(ctx, role.ID, "EDITOR_L2", "senior editors")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "EDITOR_L2" || updated.Description != "senior editors" {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := f.graph.UpdateRole(ctx, role.ID, "lowercase", ""); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("lowercase rename: err = %v, want ErrBadRequest", err)
	}
}
