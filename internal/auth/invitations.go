// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"context"
	"sync"

	"github.com/tomtom215/gatehouse/internal/apperr"
)

// StaticInvitations validates registration against a fixed set of
// single-use codes loaded from configuration. Codes are not bound to a
// specific email address.
type StaticInvitations struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

// NewStaticInvitations builds a validator from the configured code list.
func NewStaticInvitations(codes []string) *StaticInvitations {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return &StaticInvitations{codes: set}
}

// Validate reports whether the code is currently valid.
func (s *StaticInvitations) Validate(_ context.Context, code, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; !ok {
		return apperr.Forbidden("invalid invitation code")
	}
	return nil
}

// Consume burns a code so it cannot admit a second registration.
// Consuming an unknown code is a no-op.
func (s *StaticInvitations) Consume(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, code)
	return nil
}

var _ InvitationValidator = (*StaticInvitations)(nil)
