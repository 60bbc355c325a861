// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
)

// Memory-backed store implementations. Entries are lost on restart; these
// back the test suites and local development without PostgreSQL.

// MemoryPrincipalStore implements PrincipalStore in memory.
type MemoryPrincipalStore struct {
	mu          sync.RWMutex
	nextID      int64
	principals  map[int64]*models.Principal
	assignments []models.PrincipalRole
	roles       *MemoryRoleStore // for role-name resolution
}

// NewMemoryPrincipalStore creates an in-memory principal store. The role
// store is needed to resolve role names for assignments.
func NewMemoryPrincipalStore(roles *MemoryRoleStore) *MemoryPrincipalStore {
	return &MemoryPrincipalStore{
		principals: make(map[int64]*models.Principal),
		roles:      roles,
	}
}

func (s *MemoryPrincipalStore) FindByID(_ context.Context, id int64) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[id]
	if !ok {
		return nil, apperr.NotFound("principal not found")
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryPrincipalStore) FindByPublicID(_ context.Context, publicID string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.PublicID == publicID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("principal not found")
}

func (s *MemoryPrincipalStore) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("principal not found")
}

func (s *MemoryPrincipalStore) Create(_ context.Context, p *models.Principal) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.principals {
		if existing.Email == p.Email {
			return nil, apperr.Conflict("principal with email %s already exists", p.Email)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	cp := *p
	cp.ID = s.nextID
	if cp.PublicID == "" {
		cp.PublicID = uuid.NewString()
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.principals[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryPrincipalStore) Save(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.principals[p.ID]
	if !ok {
		return apperr.NotFound("principal not found")
	}
	existing.Email = p.Email
	existing.PasswordHash = p.PasswordHash
	existing.IsActive = p.IsActive
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryPrincipalStore) RoleNames(_ context.Context, principalID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, a := range s.assignments {
		if a.PrincipalID != principalID {
			continue
		}
		if role := s.roles.get(a.RoleID); role != nil {
			names = append(names, role.Name)
		}
	}
	return names, nil
}

func (s *MemoryPrincipalStore) AssignRole(_ context.Context, principalID, roleID, assignedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.PrincipalID == principalID && a.RoleID == roleID {
			return nil
		}
	}
	s.assignments = append(s.assignments, models.PrincipalRole{
		ID:          int64(len(s.assignments) + 1),
		PrincipalID: principalID,
		RoleID:      roleID,
		AssignedBy:  assignedBy,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

func (s *MemoryPrincipalStore) UnassignRole(_ context.Context, principalID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.assignments {
		if a.PrincipalID == principalID && a.RoleID == roleID {
			s.assignments = append(s.assignments[:i], s.assignments[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("role assignment not found")
}

// holderCount reports principals holding the role (callers hold no lock).
func (s *MemoryPrincipalStore) holderCount(roleID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.assignments {
		if a.RoleID == roleID {
			count++
		}
	}
	return count
}

var _ PrincipalStore = (*MemoryPrincipalStore)(nil)

// MemoryRoleStore implements RoleStore in memory.
type MemoryRoleStore struct {
	mu         sync.RWMutex
	nextID     int64
	roles      map[int64]*models.Role
	grants     map[int64]map[int64]models.RolePermission // roleID -> permissionID -> join
	perms      *MemoryPermissionStore
	principals *MemoryPrincipalStore // set via Bind; needed for HolderCount
}

// NewMemoryRoleStore creates an in-memory role store backed by the given
// permission store for join resolution.
func NewMemoryRoleStore(perms *MemoryPermissionStore) *MemoryRoleStore {
	return &MemoryRoleStore{
		roles:  make(map[int64]*models.Role),
		grants: make(map[int64]map[int64]models.RolePermission),
		perms:  perms,
	}
}

// Bind wires the principal store used for holder counting.
func (s *MemoryRoleStore) Bind(principals *MemoryPrincipalStore) {
	s.principals = principals
}

func (s *MemoryRoleStore) byID(id int64) *models.Role {
	if r, ok := s.roles[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

// get is the locked variant of byID for cross-store lookups.
func (s *MemoryRoleStore) get(id int64) *models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID(id)
}

func (s *MemoryRoleStore) FindByID(_ context.Context, id int64) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.byID(id); r != nil {
		return r, nil
	}
	return nil, apperr.NotFound("role not found")
}

func (s *MemoryRoleStore) FindByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("role not found")
}

func (s *MemoryRoleStore) List(_ context.Context) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryRoleStore) Create(_ context.Context, role *models.Role) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.Name == role.Name {
			return nil, apperr.Conflict("role %s already exists", role.Name)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	cp := *role
	cp.ID = s.nextID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.roles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryRoleStore) Update(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.roles[role.ID]
	if !ok {
		return apperr.NotFound("role not found")
	}
	for _, r := range s.roles {
		if r.ID != role.ID && r.Name == role.Name {
			return apperr.Conflict("role %s already exists", role.Name)
		}
	}
	existing.Name = role.Name
	existing.Description = role.Description
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryRoleStore) Delete(_ context.Context, id int64) error {
	if s.principals != nil {
		if holders := s.principals.holderCount(id); holders > 0 {
			return apperr.Conflict("role is held by %d principal(s)", holders)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return apperr.NotFound("role not found")
	}
	delete(s.roles, id)
	delete(s.grants, id)
	return nil
}

func (s *MemoryRoleStore) HolderCount(_ context.Context, id int64) (int, error) {
	if s.principals == nil {
		return 0, nil
	}
	return s.principals.holderCount(id), nil
}

func (s *MemoryRoleStore) Grant(_ context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[roleID] == nil {
		s.grants[roleID] = make(map[int64]models.RolePermission)
	}
	if _, ok := s.grants[roleID][permissionID]; ok {
		return nil
	}
	now := time.Now().UTC()
	s.grants[roleID][permissionID] = models.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (s *MemoryRoleStore) RevokeAll(_ context.Context, roleID int64, permissionIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range permissionIDs {
		delete(s.grants[roleID], pid)
	}
	return nil
}

func (s *MemoryRoleStore) Replace(ctx context.Context, roleID int64, permissionIDs []int64, clearExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clearExisting {
		s.grants[roleID] = make(map[int64]models.RolePermission)
	}
	if s.grants[roleID] == nil {
		s.grants[roleID] = make(map[int64]models.RolePermission)
	}
	now := time.Now().UTC()
	for _, pid := range permissionIDs {
		if _, ok := s.grants[roleID][pid]; !ok {
			s.grants[roleID][pid] = models.RolePermission{
				RoleID:       roleID,
				PermissionID: pid,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
		}
	}
	return nil
}

func (s *MemoryRoleStore) HasPermission(_ context.Context, roleID, permissionID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[roleID][permissionID]
	return ok, nil
}

func (s *MemoryRoleStore) PermissionsForRoles(_ context.Context, roleNames []string) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	var out []models.Permission
	for _, r := range s.roles {
		if !containsName(roleNames, r.Name) {
			continue
		}
		for pid := range s.grants[r.ID] {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			if p := s.perms.get(pid); p != nil {
				out = append(out, *p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryRoleStore) AnyRoleHasAction(_ context.Context, roleNames []string, method, action string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if !containsName(roleNames, r.Name) {
			continue
		}
		for pid := range s.grants[r.ID] {
			if p := s.perms.get(pid); p != nil && p.Method == method && p.Action == action {
				return true, nil
			}
		}
	}
	return false, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

var _ RoleStore = (*MemoryRoleStore)(nil)

// MemoryPermissionStore implements PermissionStore in memory. Insertion order
// is preserved so "first match wins" behaves like the relational store.
type MemoryPermissionStore struct {
	mu     sync.RWMutex
	nextID int64
	order  []int64
	perms  map[int64]*models.Permission
}

// NewMemoryPermissionStore creates an in-memory permission store.
func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{perms: make(map[int64]*models.Permission)}
}

func (s *MemoryPermissionStore) byID(id int64) *models.Permission {
	if p, ok := s.perms[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// get is the locked variant of byID for cross-store lookups.
func (s *MemoryPermissionStore) get(id int64) *models.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID(id)
}

func (s *MemoryPermissionStore) FindByID(_ context.Context, id int64) (*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.byID(id); p != nil {
		return p, nil
	}
	return nil, apperr.NotFound("permission not found")
}

func (s *MemoryPermissionStore) FindExact(_ context.Context, method, route string) (*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		p := s.perms[id]
		if p.Method == method && p.Route == route {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("permission not found")
}

func (s *MemoryPermissionStore) FindTriple(_ context.Context, method, route, action string) (*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		p := s.perms[id]
		if p.Method == method && p.Route == route && p.Action == action {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("permission not found")
}

func (s *MemoryPermissionStore) ListByMethod(_ context.Context, method string) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Permission
	for _, id := range s.order {
		if p := s.perms[id]; p.Method == method {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryPermissionStore) List(_ context.Context) ([]models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Permission, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.perms[id])
	}
	return out, nil
}

func (s *MemoryPermissionStore) Create(_ context.Context, p *models.Permission) (*models.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		e := s.perms[id]
		if e.Method == p.Method && e.Route == p.Route && e.Action == p.Action {
			return nil, apperr.Conflict("permission (%s %s %s) already exists", p.Method, p.Route, p.Action)
		}
	}
	s.nextID++
	now := time.Now().UTC()
	cp := *p
	cp.ID = s.nextID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.perms[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	out := cp
	return &out, nil
}

func (s *MemoryPermissionStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[id]; !ok {
		return apperr.NotFound("permission not found")
	}
	delete(s.perms, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

var _ PermissionStore = (*MemoryPermissionStore)(nil)

// MemoryResetTokenStore implements ResetTokenStore in memory.
type MemoryResetTokenStore struct {
	mu     sync.Mutex
	nextID int64
	tokens map[string]*models.PasswordResetToken
}

// NewMemoryResetTokenStore creates an in-memory reset-token store.
func NewMemoryResetTokenStore() *MemoryResetTokenStore {
	return &MemoryResetTokenStore{tokens: make(map[string]*models.PasswordResetToken)}
}

func (s *MemoryResetTokenStore) Create(_ context.Context, t *models.PasswordResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = time.Now().UTC()
	cp := *t
	s.tokens[t.Token] = &cp
	return nil
}

func (s *MemoryResetTokenStore) FindByToken(_ context.Context, token string) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, apperr.NotFound("reset token not found")
}

func (s *MemoryResetTokenStore) MarkUsed(_ context.Context, id int64, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.ID != id {
			continue
		}
		if t.Used {
			return apperr.Conflict("reset token already used")
		}
		t.Used = true
		ts := usedAt
		t.UsedAt = &ts
		return nil
	}
	return apperr.NotFound("reset token not found")
}

func (s *MemoryResetTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for token, t := range s.tokens {
		if t.ExpiresAt.Before(now) {
			delete(s.tokens, token)
			count++
		}
	}
	return count, nil
}

var _ ResetTokenStore = (*MemoryResetTokenStore)(nil)
