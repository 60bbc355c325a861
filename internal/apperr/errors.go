// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package apperr defines the error taxonomy shared by all Gatehouse services.
//
// Services return errors wrapping exactly one of the sentinels below; the API
// boundary maps each sentinel to an HTTP status. Business code never inspects
// status codes, only sentinels via errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized covers missing, invalid, expired, revoked, and
	// role-mismatched tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the principal is valid but lacks the permission.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest covers malformed input, such as an undecodable token on
	// logout or a malformed action string on permission creation.
	ErrBadRequest = errors.New("bad request")

	// ErrConflict covers duplicate permission triples and duplicate role names.
	ErrConflict = errors.New("conflict")

	// ErrNotFound covers absent roles, permissions, and assignments.
	ErrNotFound = errors.New("not found")

	// ErrInternal is the generic boundary error; no internal detail is
	// attached to the client-visible message.
	ErrInternal = errors.New("internal error")
)

// Unauthorized wraps ErrUnauthorized with a reason.
func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// BadRequest wraps ErrBadRequest with a reason.
func BadRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with a reason.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
