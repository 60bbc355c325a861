// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package catalog

import (
	"regexp"
	"strings"
)

// versionPrefix matches an API version prefix such as /api/v1 or /api/v12.
// Stored routes are normalized without it so lookups are stable across API
// versions.
var versionPrefix = regexp.MustCompile(`^/api/v[0-9]+`)

// NormalizeRoute canonicalizes a route or request path: leading slash
// guaranteed, trailing slash dropped (except for the root path).
func NormalizeRoute(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// StripVersionPrefix removes a leading /api/vN from the path, if present.
func StripVersionPrefix(path string) string {
	stripped := versionPrefix.ReplaceAllString(path, "")
	return NormalizeRoute(stripped)
}

// MatchPattern reports whether a stored route pattern matches a concrete
// path, segment-wise: both are split on '/', the segment counts must be
// equal, and each pattern segment either begins with ':' (wildcard matching
// any single segment) or must equal the path segment literally.
func MatchPattern(pattern, path string) bool {
	patternSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternSegs) != len(pathSegs) {
		return false
	}
	for i, seg := range patternSegs {
		if strings.HasPrefix(seg, ":") {
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}
	return true
}

// PatternsOverlap reports whether two same-method patterns are structurally
// identical: equal segment counts with wildcards in the same positions and
// equal literals elsewhere. Such pairs would make first-match resolution
// order-dependent, so registration rejects them.
func PatternsOverlap(a, b string) bool {
	aSegs := strings.Split(strings.Trim(a, "/"), "/")
	bSegs := strings.Split(strings.Trim(b, "/"), "/")
	if len(aSegs) != len(bSegs) {
		return false
	}
	for i := range aSegs {
		aWild := strings.HasPrefix(aSegs[i], ":")
		bWild := strings.HasPrefix(bSegs[i], ":")
		if aWild != bWild {
			return false
		}
		if !aWild && aSegs[i] != bSegs[i] {
			return false
		}
	}
	return true
}
