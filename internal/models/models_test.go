// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package models

import (
	"errors"
	"testing"

	"github.com/tomtom215/gatehouse/internal/apperr"
)

func TestValidateRoleName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"ADMIN", true},
		{"USER", true},
		{"ADMIN_L2", true},
		{"AUDIT_READER", true},
		{"A", true},
		{"admin", false},
		{"Admin", false},
		{"ADMIN-L2", false},
		{"2ADMIN", false},
		{"_ADMIN", false},
		{"", false},
		{"ADMIN L2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoleName(tt.name)
			if tt.valid && err != nil {
				t.Errorf("ValidateRoleName(%q) = %v, want nil", tt.name, err)
			}
			if !tt.valid && !errors.Is(err, apperr.ErrBadRequest) {
				t.Errorf("ValidateRoleName(%q) = %v, want ErrBadRequest", tt.name, err)
			}
		})
	}
}

func TestValidateAction(t *testing.T) {
	tests := []struct {
		action string
		valid  bool
	}{
		{"user:list", true},
		{"user:detail", true},
		{"role-permission:list", true},
		{"audit_log:read", true},
		{"user", false},
		{"user:list:extra", false},
		{"User:list", false},
		{"user:List", false},
		{":list", false},
		{"user:", false},
		{"", false},
		{"user :list", false},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			err := ValidateAction(tt.action)
			if tt.valid && err != nil {
				t.Errorf("ValidateAction(%q) = %v, want nil", tt.action, err)
			}
			if !tt.valid && !errors.Is(err, apperr.ErrBadRequest) {
				t.Errorf("ValidateAction(%q) = %v, want ErrBadRequest", tt.action, err)
			}
		})
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"GET", "GET", false},
		{"get", "GET", false},
		{" post ", "POST", false},
		{"Delete", "DELETE", false},
		{"PATCH", "PATCH", false},
		{"PUT", "PUT", false},
		{"TRACE", "", true},
		{"HEAD", "", true},
		{"OPTIONS", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeMethod(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrBadRequest) {
					t.Errorf("NormalizeMethod(%q) err = %v, want ErrBadRequest", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeMethod(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeMethod(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
