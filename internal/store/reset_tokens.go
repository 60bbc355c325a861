// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/models"
)

// PGResetTokenStore implements ResetTokenStore using PostgreSQL.
type PGResetTokenStore struct {
	pool *pgxpool.Pool
}

// NewPGResetTokenStore constructs a PostgreSQL reset-token store.
func NewPGResetTokenStore(pool *pgxpool.Pool) *PGResetTokenStore {
	return &PGResetTokenStore{pool: pool}
}

// Create persists a new reset token.
func (s *PGResetTokenStore) Create(ctx context.Context, t *models.PasswordResetToken) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO password_reset_tokens (token, principal_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		t.Token, t.PrincipalID, t.ExpiresAt).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create reset token: %w", err)
	}
	return nil
}

// FindByToken fetches a reset token by value regardless of state.
func (s *PGResetTokenStore) FindByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := s.pool.QueryRow(ctx, `
		SELECT id, token, principal_id, expires_at, used, used_at, created_at
		FROM password_reset_tokens WHERE token = $1`, token).
		Scan(&t.ID, &t.Token, &t.PrincipalID, &t.ExpiresAt, &t.Used, &t.UsedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("reset token not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: find reset token: %w", err)
	}
	return &t, nil
}

// MarkUsed flips the used flag exactly once. The WHERE NOT used guard makes
// concurrent redemption of the same token a conflict for the loser.
func (s *PGResetTokenStore) MarkUsed(ctx context.Context, id int64, usedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		WHERE id = $1 AND NOT used`, id, usedAt)
	if err != nil {
		return fmt.Errorf("store: mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("reset token already used")
	}
	return nil
}

// DeleteExpired purges tokens past their expiry.
func (s *PGResetTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("store: delete expired reset tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ ResetTokenStore = (*PGResetTokenStore)(nil)
