// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package catalog

import "testing"

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"missing leading slash", "users", "/users"},
		{"trailing slash dropped", "/users/", "/users"},
		{"multiple trailing slashes", "/users///", "/users"},
		{"already normalized", "/users/42/roles", "/users/42/roles"},
		{"pattern segments preserved", "/roles/:roleId/permissions", "/roles/:roleId/permissions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRoute(tt.in); got != tt.want {
				t.Errorf("NormalizeRoute(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripVersionPrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"v1 prefix", "/api/v1/users", "/users"},
		{"multi digit version", "/api/v12/users", "/users"},
		{"no prefix", "/users", "/users"},
		{"prefix only", "/api/v1", "/"},
		{"prefix mid-path untouched", "/users/api/v1", "/users/api/v1"},
		{"trailing slash after strip", "/api/v1/users/", "/users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripVersionPrefix(tt.in); got != tt.want {
				t.Errorf("StripVersionPrefix(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"exact literal", "/users", "/users", true},
		{"single wildcard", "/users/:id", "/users/42", true},
		{"wildcard matches non-numeric", "/users/:id", "/users/alice", true},
		{"segment count mismatch short", "/users/:id", "/users", false},
		{"segment count mismatch long", "/users/:id", "/users/42/roles", false},
		{"literal mismatch", "/users/:id", "/teams/42", false},
		{"wildcard between literals", "/role-permissions/:roleId/permissions", "/role-permissions/7/permissions", true},
		{"trailing literal mismatch", "/role-permissions/:roleId/permissions", "/role-permissions/7/roles", false},
		{"two wildcards", "/users/:userId/roles/:roleName", "/users/5/roles/ADMIN", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestPatternsOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"identical literals", "/users", "/users", true},
		{"same shape different param name", "/users/:id", "/users/:userId", true},
		{"wildcard vs literal", "/users/:id", "/users/profile", false},
		{"different literals", "/users/:id", "/teams/:id", false},
		{"different lengths", "/users/:id", "/users/:id/roles", false},
		{"same shape deep", "/roles/:roleId/permissions", "/roles/:id/permissions", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PatternsOverlap(tt.a, tt.b); got != tt.want {
				t.Errorf("PatternsOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
