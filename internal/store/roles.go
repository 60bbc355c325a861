// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PGRoleStore implements RoleStore using PostgreSQL.
type PGRoleStore struct {
	pool *pgxpool.Pool
}

// NewPGRoleStore constructs a PostgreSQL role store.
func NewPGRoleStore(pool *pgxpool.Pool) *PGRoleStore {
	return &PGRoleStore{pool: pool}
}

const roleColumns = `id, name, COALESCE(description, ''), created_at, updated_at`

func scanRole(row pgx.Row) (*models.Role, error) {
	var r models.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("role not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan role: %w", err)
	}
	return &r, nil
}

// FindByID fetches a role by internal ID.
func (s *PGRoleStore) FindByID(ctx context.Context, id int64) (*models.Role, error) {
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// FindByName fetches a role by name.
func (s *PGRoleStore) FindByName(ctx context.Context, name string) (*models.Role, error) {
	return scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// List returns all roles ordered by name.
func (s *PGRoleStore) List(ctx context.Context) ([]models.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var r models.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// Create persists a new role.
func (s *PGRoleStore) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description)
		VALUES ($1, NULLIF($2, ''))
		RETURNING `+roleColumns,
		role.Name, role.Description)
	created, err := scanRole(row)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("role %s already exists", role.Name)
	}
	return created, err
}

// Update persists name/description changes.
func (s *PGRoleStore) Update(ctx context.Context, role *models.Role) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE roles SET name = $2, description = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`,
		role.ID, role.Name, role.Description)
	if isUniqueViolation(err) {
		return apperr.Conflict("role %s already exists", role.Name)
	}
	if err != nil {
		return fmt.Errorf("store: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("role not found")
	}
	return nil
}

// Delete removes a role unless a principal still holds it.
func (s *PGRoleStore) Delete(ctx context.Context, id int64) error {
	holders, err := s.HolderCount(ctx, id)
	if err != nil {
		return err
	}
	if holders > 0 {
		return apperr.Conflict("role is held by %d principal(s)", holders)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("role not found")
	}
	return nil
}

// HolderCount returns how many principals hold the role.
func (s *PGRoleStore) HolderCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM principal_roles WHERE role_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: holder count: %w", err)
	}
	return count, nil
}

// Grant adds a role-permission join, idempotently.
func (s *PGRoleStore) Grant(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, permissionID)
	if err != nil {
		return fmt.Errorf("store: grant: %w", err)
	}
	return nil
}

// RevokeAll removes the given permission joins from the role.
func (s *PGRoleStore) RevokeAll(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = ANY($2)`,
		roleID, permissionIDs)
	if err != nil {
		return fmt.Errorf("store: revoke: %w", err)
	}
	return nil
}

// Replace atomically rewrites the role's grants. The clear and re-add run in
// one transaction so concurrent readers never observe a partially written
// grant set.
func (s *PGRoleStore) Replace(ctx context.Context, roleID int64, permissionIDs []int64, clearExisting bool) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if clearExisting {
			if _, err := tx.Exec(ctx,
				`DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
				return fmt.Errorf("store: replace clear: %w", err)
			}
		}
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				VALUES ($1, $2)
				ON CONFLICT (role_id, permission_id) DO NOTHING`,
				roleID, pid); err != nil {
				return fmt.Errorf("store: replace add %d: %w", pid, err)
			}
		}
		return nil
	})
}

// HasPermission reports whether the role holds the permission.
func (s *PGRoleStore) HasPermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_permissions WHERE role_id = $1 AND permission_id = $2
		)`, roleID, permissionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: has permission: %w", err)
	}
	return exists, nil
}

// PermissionsForRoles returns the union of permissions granted to the named roles.
func (s *PGRoleStore) PermissionsForRoles(ctx context.Context, roleNames []string) ([]models.Permission, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.method, p.route, p.action, p.created_at, p.updated_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN roles r ON r.id = rp.role_id
		WHERE r.name = ANY($1)
		ORDER BY p.id`, roleNames)
	if err != nil {
		return nil, fmt.Errorf("store: permissions for roles: %w", err)
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Method, &p.Route, &p.Action, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AnyRoleHasAction reports whether any named role holds a permission with the
// given method and action.
func (s *PGRoleStore) AnyRoleHasAction(ctx context.Context, roleNames []string, method, action string) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM role_permissions rp
			JOIN roles r ON r.id = rp.role_id
			JOIN permissions p ON p.id = rp.permission_id
			WHERE r.name = ANY($1) AND p.method = $2 AND p.action = $3
		)`, roleNames, method, action).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: any role has action: %w", err)
	}
	return exists, nil
}

var _ RoleStore = (*PGRoleStore)(nil)
