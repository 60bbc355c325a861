// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
)

// PGPrincipalStore implements PrincipalStore using PostgreSQL.
type PGPrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPGPrincipalStore constructs a PostgreSQL principal store.
func NewPGPrincipalStore(pool *pgxpool.Pool) *PGPrincipalStore {
	return &PGPrincipalStore{pool: pool}
}

const principalColumns = `id, public_id, email, password_hash, is_active, created_at, updated_at`

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(&p.ID, &p.PublicID, &p.Email, &p.PasswordHash, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("principal not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan principal: %w", err)
	}
	return &p, nil
}

// FindByID fetches a principal by internal ID.
func (s *PGPrincipalStore) FindByID(ctx context.Context, id int64) (*models.Principal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	return scanPrincipal(row)
}

// FindByPublicID fetches a principal by external UUID.
func (s *PGPrincipalStore) FindByPublicID(ctx context.Context, publicID string) (*models.Principal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE public_id = $1`, publicID)
	return scanPrincipal(row)
}

// FindByEmail fetches a principal by email.
func (s *PGPrincipalStore) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE email = $1`, email)
	return scanPrincipal(row)
}

// Create persists a new principal, generating PublicID when empty.
func (s *PGPrincipalStore) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	publicID := p.PublicID
	if publicID == "" {
		publicID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO principals (public_id, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING `+principalColumns,
		publicID, p.Email, p.PasswordHash, p.IsActive)
	created, err := scanPrincipal(row)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Conflict("principal with email %s already exists", p.Email)
	}
	return created, err
}

// Save updates the mutable fields of a principal.
func (s *PGPrincipalStore) Save(ctx context.Context, p *models.Principal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE principals
		SET email = $2, password_hash = $3, is_active = $4, updated_at = now()
		WHERE id = $1`,
		p.ID, p.Email, p.PasswordHash, p.IsActive)
	if err != nil {
		return fmt.Errorf("store: save principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("principal not found")
	}
	return nil
}

// RoleNames returns the role names the principal holds, ordered by assignment.
func (s *PGPrincipalStore) RoleNames(ctx context.Context, principalID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.name
		FROM principal_roles pr
		JOIN roles r ON r.id = pr.role_id
		WHERE pr.principal_id = $1
		ORDER BY pr.created_at, pr.id`, principalID)
	if err != nil {
		return nil, fmt.Errorf("store: role names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AssignRole adds a principal-role join, idempotently.
func (s *PGPrincipalStore) AssignRole(ctx context.Context, principalID, roleID, assignedBy int64) error {
	var by any
	if assignedBy != 0 {
		by = assignedBy
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO principal_roles (principal_id, role_id, assigned_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal_id, role_id) DO NOTHING`,
		principalID, roleID, by)
	if err != nil {
		return fmt.Errorf("store: assign role: %w", err)
	}
	return nil
}

// UnassignRole removes a principal-role join.
func (s *PGPrincipalStore) UnassignRole(ctx context.Context, principalID, roleID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM principal_roles WHERE principal_id = $1 AND role_id = $2`,
		principalID, roleID)
	if err != nil {
		return fmt.Errorf("store: unassign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("role assignment not found")
	}
	return nil
}

var _ PrincipalStore = (*PGPrincipalStore)(nil)
