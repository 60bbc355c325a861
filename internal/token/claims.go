// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	// TypeAccess marks short-lived tokens that authenticate requests.
	TypeAccess = "access"

	// TypeRefresh marks long-lived tokens exchanged for new pairs.
	TypeRefresh = "refresh"
)

// Claims is the signed token payload. Subject (sub) is the principal's
// public UUID; Email and Roles are carried on access tokens only so that
// refresh-token verification needs no principal round trip.
type Claims struct {
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"type"`
	jwt.RegisteredClaims
}
