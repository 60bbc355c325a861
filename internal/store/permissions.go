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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
)

// PGPermissionStore implements PermissionStore using PostgreSQL.
type PGPermissionStore struct {
	pool *pgxpool.Pool
}

// NewPGPermissionStore constructs a PostgreSQL permission store.
func NewPGPermissionStore(pool *pgxpool.Pool) *PGPermissionStore {
	return &PGPermissionStore{pool: pool}
}

const permissionColumns = `id, method, route, action, created_at, updated_at`

func scanPermission(row pgx.Row) (*models.Permission, error) {
	var p models.Permission
	err := row.Scan(&p.ID, &p.Method, &p.Route, &p.Action, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("permission not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan permission: %w", err)
	}
	return &p, nil
}

// FindByID fetches a permission by internal ID.
func (s *PGPermissionStore) FindByID(ctx context.Context, id int64) (*models.Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
}

// FindExact fetches the permission with the exact (method, route) pair.
func (s *PGPermissionStore) FindExact(ctx context.Context, method, route string) (*models.Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE method = $1 AND route = $2`,
		method, route))
}

// FindTriple fetches the permission with the exact triple.
func (s *PGPermissionStore) FindTriple(ctx context.Context, method, route, action string) (*models.Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE method = $1 AND route = $2 AND action = $3`,
		method, route, action))
}

func (s *PGPermissionStore) list(ctx context.Context, query string, args ...any) ([]models.Permission, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list permissions: %w", err)
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

// ListByMethod returns permissions for the method in stored (insertion) order.
func (s *PGPermissionStore) ListByMethod(ctx context.Context, method string) ([]models.Permission, error) {
	return s.list(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE method = $1 ORDER BY id`, method)
}

// List returns all permissions in stored order.
func (s *PGPermissionStore) List(ctx context.Context) ([]models.Permission, error) {
	return s.list(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY id`)
}

// Create persists a new permission triple.
func (s *PGPermissionStore) Create(ctx context.Context, p *models.Permission) (*models.Permission, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO permissions (method, route, action)
		VALUES ($1, $2, $3)
		RETURNING `+permissionColumns,
		p.Method, p.Route, p.Action)
	created, err := scanPermission(row)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("permission (%s %s %s) already exists", p.Method, p.Route, p.Action)
	}
	return created, err
}

// Delete removes a permission; role grants cascade via foreign key.
func (s *PGPermissionStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("permission not found")
	}
	return nil
}

var _ PermissionStore = (*PGPermissionStore)(nil)
