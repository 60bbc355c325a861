// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package models defines the persistent entities of the authorization core
// and the validation rules on their semantic fields.
package models

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/gatehouse/internal/apperr"
)

// Principal is an authenticated user/actor entity.
//
// PublicID is the stable external identifier (opaque UUID) and never changes.
// ID is the internal storage key and is never exposed outside the store and
// service layers.
type Principal struct {
	ID           int64     `json:"-"`
	PublicID     string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role is a named grant bundle. Names are uppercase identifiers.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a (HTTP method, route pattern, action) triple.
//
// Route patterns are stored normalized: leading slash, no version prefix.
// A pattern segment beginning with ':' matches any single path segment.
type Permission struct {
	ID        int64     `json:"id"`
	Method    string    `json:"method"`
	Route     string    `json:"route"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RolePermission is the role-to-permission join record.
// Uniqueness on (RoleID, PermissionID) makes grants idempotent.
type RolePermission struct {
	ID           int64     `json:"id"`
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PrincipalRole is the principal-to-role join record. AssignedBy records the
// internal ID of the assigning principal, zero for system bootstrap.
type PrincipalRole struct {
	ID          int64     `json:"id"`
	PrincipalID int64     `json:"principal_id"`
	RoleID      int64     `json:"role_id"`
	AssignedBy  int64     `json:"assigned_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RevokedToken marks a token invalid prior to its natural expiry.
// TokenHash is the SHA-256 hex of the token string; a unique index on it
// makes blacklist lookup O(1) amortized.
type RevokedToken struct {
	TokenHash string    `json:"token_hash"`
	Subject   string    `json:"subject"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

// PasswordResetToken is a single-use reset token. Once Used is set the token
// is permanently invalid even if not yet expired.
type PasswordResetToken struct {
	ID          int64      `json:"id"`
	Token       string     `json:"-"`
	PrincipalID int64      `json:"-"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Used        bool       `json:"used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// roleNamePattern accepts uppercase identifiers with digits and underscores
// after the first character, e.g. ADMIN, ADMIN_L2, AUDIT_READER.
var roleNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// actionSegmentPattern accepts one lowercase action segment.
var actionSegmentPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateRoleName checks the uppercase role-name convention.
func ValidateRoleName(name string) error {
	if !roleNamePattern.MatchString(name) {
		return apperr.BadRequest("role name %q must be uppercase (pattern %s)", name, roleNamePattern.String())
	}
	return nil
}

// ValidateAction checks the module:operation action shape: exactly one ':'
// separator with lowercase segments on both sides, e.g. "user:list".
func ValidateAction(action string) error {
	parts := strings.Split(action, ":")
	if len(parts) != 2 {
		return apperr.BadRequest("action %q must have exactly one ':' separator (module:operation)", action)
	}
	for _, part := range parts {
		if !actionSegmentPattern.MatchString(part) {
			return apperr.BadRequest("action %q segments must be lowercase (module:operation)", action)
		}
	}
	return nil
}

// allowedMethods are the HTTP methods a permission may carry.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// NormalizeMethod uppercases and validates an HTTP method.
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if !allowedMethods[m] {
		return "", apperr.BadRequest("unsupported HTTP method %q", method)
	}
	return m, nil
}
