// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
)

func newMemoryStores() (*MemoryPrincipalStore, *MemoryRoleStore, *MemoryPermissionStore) {
	perms := NewMemoryPermissionStore()
	roles := NewMemoryRoleStore(perms)
	principals := NewMemoryPrincipalStore(roles)
	roles.Bind(principals)
	return principals, roles, perms
}

func TestPrincipalCreateGeneratesPublicID(t *testing.T) {
	ctx := context.Background()
	principals, _, _ := newMemoryStores()

	p, err := principals.Create(ctx, &models.Principal{
		Email:        "alice@example.com",
		PasswordHash: "x",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PublicID == "" {
		t.Error("public ID not generated")
	}
	if p.ID == 0 {
		t.Error("internal ID not assigned")
	}

	found, err := principals.FindByPublicID(ctx, p.PublicID)
	if err != nil {
		t.Fatalf("find by public ID: %v", err)
	}
	if found.Email != "alice@example.com" {
		t.Errorf("email = %q", found.Email)
	}
}

func TestPrincipalCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	principals, _, _ := newMemoryStores()

	if _, err := principals.Create(ctx, &models.Principal{Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := principals.Create(ctx, &models.Principal{Email: "a@example.com"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPrincipalSaveUpdatesFields(t *testing.T) {
	ctx := context.Background()
	principals, _, _ := newMemoryStores()

	p, err := principals.Create(ctx, &models.Principal{Email: "a@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p.IsActive = false
	p.PasswordHash = "newhash"
	if err := principals.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := principals.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.IsActive {
		t.Error("IsActive not persisted")
	}
	if found.PasswordHash != "newhash" {
		t.Errorf("hash = %q", found.PasswordHash)
	}

	if err := principals.Save(ctx, &models.Principal{ID: 999}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("save unknown: err = %v, want ErrNotFound", err)
	}
}

func TestPrincipalStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	principals, _, _ := newMemoryStores()

	p, err := principals.Create(ctx, &models.Principal{Email: "a@example.com", IsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p.Email = "mutated@example.com"

	found, err := principals.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Email != "a@example.com" {
		t.Errorf("caller mutation leaked into store: %q", found.Email)
	}
}

func TestRoleNamesAcrossAssignments(t *testing.T) {
	ctx := context.Background()
	principals, roles, _ := newMemoryStores()

	p, err := principals.Create(ctx, &models.Principal{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("create principal: %v", err)
	}
	admin, err := roles.Create(ctx, &models.Role{Name: "ADMIN"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	user, err := roles.Create(ctx, &models.Role{Name: "USER"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	for _, r := range []*models.Role{admin, user} {
		if err := principals.AssignRole(ctx, p.ID, r.ID, 0); err != nil {
			t.Fatalf("assign %s: %v", r.Name, err)
		}
	}

	names, err := principals.RoleNames(ctx, p.ID)
	if err != nil {
		t.Fatalf("role names: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v, want 2 entries", names)
	}

	if err := principals.UnassignRole(ctx, p.ID, admin.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	names, err = principals.RoleNames(ctx, p.ID)
	if err != nil {
		t.Fatalf("role names: %v", err)
	}
	if len(names) != 1 || names[0] != "USER" {
		t.Errorf("names = %v, want [USER]", names)
	}
}

func TestRoleCreateDuplicateName(t *testing.T) {
	ctx := context.Background()
	_, roles, _ := newMemoryStores()

	if _, err := roles.Create(ctx, &models.Role{Name: "ADMIN"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := roles.Create(ctx, &models.Role{Name: "ADMIN"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPermissionListByMethodPreservesOrder(t *testing.T) {
	ctx := context.Background()
	perms := NewMemoryPermissionStore()

	specs := []models.Permission{
		{Method: "GET", Route: "/users/profile", Action: "user:profile"},
		{Method: "GET", Route: "/users/:id", Action: "user:detail"},
		{Method: "POST", Route: "/users", Action: "user:create"},
	}
	for i := range specs {
		if _, err := perms.Create(ctx, &specs[i]); err != nil {
			t.Fatalf("create %s: %v", specs[i].Action, err)
		}
	}

	gets, err := perms.ListByMethod(ctx, "GET")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(gets) != 2 {
		t.Fatalf("len = %d, want 2", len(gets))
	}
	if gets[0].Action != "user:profile" || gets[1].Action != "user:detail" {
		t.Errorf("order = [%s %s], want insertion order", gets[0].Action, gets[1].Action)
	}
}

func TestPermissionFindTriple(t *testing.T) {
	ctx := context.Background()
	perms := NewMemoryPermissionStore()

	created, err := perms.Create(ctx, &models.Permission{Method: "GET", Route: "/users", Action: "user:list"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := perms.FindTriple(ctx, "GET", "/users", "user:list")
	if err != nil {
		t.Fatalf("find triple: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("id = %d, want %d", found.ID, created.ID)
	}

	if _, err := perms.FindTriple(ctx, "GET", "/users", "user:detail"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("different action: err = %v, want ErrNotFound", err)
	}
}

func TestPermissionDeleteDropsFromOrder(t *testing.T) {
	ctx := context.Background()
	perms := NewMemoryPermissionStore()

	a, err := perms.Create(ctx, &models.Permission{Method: "GET", Route: "/a", Action: "a:list"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := perms.Create(ctx, &models.Permission{Method: "GET", Route: "/b", Action: "b:list"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := perms.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := perms.ListByMethod(ctx, "GET")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Action != "b:list" {
		t.Errorf("list = %+v, want only b:list", list)
	}

	if err := perms.Delete(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestResetTokenMarkUsedOnce(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryResetTokenStore()

	rt := &models.PasswordResetToken{
		Token:       "tok-1",
		PrincipalID: 1,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := tokens.Create(ctx, rt); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := tokens.FindByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := tokens.MarkUsed(ctx, found.ID, time.Now()); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if err := tokens.MarkUsed(ctx, found.ID, time.Now()); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("second mark: err = %v, want ErrConflict", err)
	}
}

func TestResetTokenDeleteExpired(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryResetTokenStore()

	now := time.Now()
	expired := &models.PasswordResetToken{Token: "old", PrincipalID: 1, ExpiresAt: now.Add(-time.Minute)}
	live := &models.PasswordResetToken{Token: "new", PrincipalID: 1, ExpiresAt: now.Add(time.Hour)}
	for _, rt := range []*models.PasswordResetToken{expired, live} {
		if err := tokens.Create(ctx, rt); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	n, err := tokens.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := tokens.FindByToken(ctx, "old"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expired token still present: %v", err)
	}
	if _, err := tokens.FindByToken(ctx, "new"); err != nil {
		t.Errorf("live token dropped: %v", err)
	}
}
