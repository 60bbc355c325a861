// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package authz implements the authorization decision engine: the route
// action resolver, the Authenticate and Authorize middleware, and the
// diagnostics surface over both.
package authz

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/catalog"
)

// Resolution sources, exposed for diagnostics and metrics.
const (
	SourceCatalog    = "catalog"
	SourceConvention = "convention"
)

// Resolver derives the logical action for a request: catalog lookup over a
// set of path variants first, then the naming-convention fallback. The
// fallback means every request resolves to some action; unregistered
// routes are still subject to a permission check rather than waved through.
type Resolver struct {
	catalog *catalog.Catalog
}

// NewResolver builds a Resolver over the permission catalog.
func NewResolver(c *catalog.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// ResolveAction resolves (method, path) to an action. path must already
// have the version prefix stripped; extraVariants carries the router's raw
// matched-route template when available. Returns the action and its source.
func (r *Resolver) ResolveAction(ctx context.Context, method, path string, extraVariants ...string) (string, string, error) {
	for _, variant := range pathVariants(path, extraVariants) {
		action, err := r.catalog.ResolveAction(ctx, method, variant)
		if err == nil {
			return action, SourceCatalog, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", "", err
		}
	}

	action, err := ConventionAction(method, path)
	if err != nil {
		return "", "", err
	}
	return action, SourceConvention, nil
}

// pathVariants builds the candidate set tried against the catalog:
// normalized, without leading slash, and any router-provided templates.
func pathVariants(path string, extra []string) []string {
	normalized := catalog.NormalizeRoute(path)
	variants := []string{normalized}
	if trimmed := strings.TrimPrefix(normalized, "/"); trimmed != "" && trimmed != normalized {
		variants = append(variants, trimmed)
	}
	for _, e := range extra {
		if e == "" {
			continue
		}
		if n := catalog.NormalizeRoute(e); n != normalized {
			variants = append(variants, n)
		}
	}
	return variants
}

// getLiterals are tail segments treated as named sub-operations for GET
// rather than collapsing to "detail".
var getLiterals = map[string]bool{
	"profile":     true,
	"roles":       true,
	"permissions": true,
	"me":          true,
}

// ConventionAction infers an action from the path shape alone. The first
// segment is the resource noun; the operation follows from the method and
// the remaining segments. Pure function, no catalog involved.
func ConventionAction(method, path string) (string, error) {
	segs := splitSegments(path)
	if len(segs) == 0 {
		return "", apperr.NotFound("no action derivable for %s %s", method, path)
	}

	resource := strings.ToLower(segs[0])
	tail := segs[1:]

	var op string
	switch method {
	case "GET":
		switch {
		case len(tail) == 0:
			op = "list"
		case getLiterals[strings.ToLower(tail[0])]:
			op = strings.ToLower(tail[0])
		default:
			op = "detail"
		}
	case "POST":
		if len(tail) > 0 {
			op = strings.ToLower(tail[0])
		} else {
			op = "create"
		}
	case "PUT", "PATCH":
		op = "update"
	case "DELETE":
		op = "delete"
	default:
		return "", apperr.NotFound("no action derivable for %s %s", method, path)
	}

	return resource + ":" + op, nil
}

func splitSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
