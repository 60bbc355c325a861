// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package token implements the JWT lifecycle: HS256 issuance of access and
// refresh tokens, verification with revocation and principal-drift checks,
// additive refresh rotation, and a pluggable blacklist (memory or BadgerDB)
// keyed on the SHA-256 of the raw token.
package token

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/store"
)

// Pair bundles the two tokens returned by login and refresh.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service issues, verifies, refreshes, and revokes JWTs. Access tokens
// carry the principal's email and role names; refresh tokens carry only
// the subject. Both are HS256-signed with the configured secret.
type Service struct {
	principals store.PrincipalStore
	blacklist  Blacklist
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService builds a Service from security configuration. Malformed
// expiry strings fall back to 15 minutes (access) and 7 days (refresh).
func NewService(principals store.PrincipalStore, blacklist Blacklist, cfg config.SecurityConfig) *Service {
	return &Service{
		principals: principals,
		blacklist:  blacklist,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  ExpiryOrDefault(cfg.AccessTokenExpiry, 15*time.Minute),
		refreshTTL: ExpiryOrDefault(cfg.RefreshTokenExpiry, 7*24*time.Hour),
	}
}

// IssueAccessToken signs an access token for the principal with their
// current role names embedded as claims.
func (s *Service) IssueAccessToken(ctx context.Context, p *models.Principal) (string, error) {
	roles, err := s.principals.RoleNames(ctx, p.ID)
	if err != nil {
		return "", fmt.Errorf("token: load roles for claims: %w", err)
	}
	return s.sign(p, roles, TypeAccess, s.accessTTL)
}

// IssueRefreshToken signs a refresh token for the principal. Refresh
// tokens carry no roles; roles are re-read at refresh time.
func (s *Service) IssueRefreshToken(ctx context.Context, p *models.Principal) (string, error) {
	return s.sign(p, nil, TypeRefresh, s.refreshTTL)
}

// IssuePair issues an access and refresh token together.
func (s *Service) IssuePair(ctx context.Context, p *models.Principal) (*Pair, error) {
	access, err := s.IssueAccessToken(ctx, p)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(ctx, p)
	if err != nil {
		return nil, err
	}
	TokensIssuedTotal.WithLabelValues(TypeAccess).Inc()
	TokensIssuedTotal.WithLabelValues(TypeRefresh).Inc()
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(p *models.Principal, roles []string, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:     p.Email,
		Roles:     roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.PublicID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Verify validates a raw token and returns its claims. Checks run in a
// fixed order: revocation, then signature and expiry, then token type.
// Access tokens additionally require the principal to still exist, be
// active, and hold exactly the role set embedded at issue time; any
// drift invalidates the token.
func (s *Service) Verify(ctx context.Context, raw string, expectedType string) (*Claims, error) {
	revoked, err := s.blacklist.IsRevoked(ctx, HashToken(raw))
	if err != nil {
		return nil, fmt.Errorf("token: revocation check: %w", err)
	}
	if revoked {
		TokenVerificationsTotal.WithLabelValues(expectedType, "revoked").Inc()
		return nil, apperr.Unauthorized("token has been revoked")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		TokenVerificationsTotal.WithLabelValues(expectedType, "invalid").Inc()
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("token expired")
		}
		return nil, apperr.Unauthorized("invalid token")
	}
	if !parsed.Valid {
		TokenVerificationsTotal.WithLabelValues(expectedType, "invalid").Inc()
		return nil, apperr.Unauthorized("invalid token")
	}

	if claims.TokenType != expectedType {
		TokenVerificationsTotal.WithLabelValues(expectedType, "wrong_type").Inc()
		return nil, apperr.Unauthorized("expected %s token, got %s", expectedType, claims.TokenType)
	}

	if expectedType == TypeAccess {
		if err := s.verifyPrincipal(ctx, claims); err != nil {
			TokenVerificationsTotal.WithLabelValues(expectedType, "principal").Inc()
			return nil, err
		}
	}

	TokenVerificationsTotal.WithLabelValues(expectedType, "ok").Inc()
	return claims, nil
}

// verifyPrincipal confirms the subject still exists, is active, and holds
// exactly the roles embedded in the token.
func (s *Service) verifyPrincipal(ctx context.Context, claims *Claims) error {
	p, err := s.principals.FindByPublicID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Unauthorized("principal no longer exists")
		}
		return fmt.Errorf("token: load principal: %w", err)
	}
	if !p.IsActive {
		return apperr.Unauthorized("principal is deactivated")
	}

	current, err := s.principals.RoleNames(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("token: load current roles: %w", err)
	}
	if !sameRoleSet(claims.Roles, current) {
		return apperr.Unauthorized("role assignments have changed, re-authenticate")
	}
	return nil
}

// sameRoleSet compares two role-name slices as sets.
func sameRoleSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Refresh verifies a refresh token and issues a fresh pair. The spent
// refresh token stays valid until it expires; rotation is additive.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*Pair, error) {
	claims, err := s.Verify(ctx, rawRefresh, TypeRefresh)
	if err != nil {
		return nil, err
	}

	p, err := s.principals.FindByPublicID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("principal no longer exists")
		}
		return nil, fmt.Errorf("token: load principal for refresh: %w", err)
	}
	if !p.IsActive {
		return nil, apperr.Unauthorized("principal is deactivated")
	}

	return s.IssuePair(ctx, p)
}

// Revoke blacklists a raw token until its natural expiry. The token is
// decoded without signature verification; logout must work even for
// tokens whose principal state has since drifted. Undecodable input is
// rejected, already-expired tokens are a no-op.
func (s *Service) Revoke(ctx context.Context, raw, reason string) error {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return apperr.BadRequest("malformed token")
	}

	expiresAt := time.Now().Add(s.accessTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if time.Now().After(expiresAt) {
		return nil
	}

	rec := &models.RevokedToken{
		TokenHash: HashToken(raw),
		Subject:   claims.Subject,
		Reason:    reason,
		ExpiresAt: expiresAt,
		RevokedAt: time.Now().UTC(),
	}
	if err := s.blacklist.Revoke(ctx, rec); err != nil {
		return fmt.Errorf("token: revoke: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("subject", claims.Subject).
		Str("reason", reason).
		Msg("token revoked")
	return nil
}
