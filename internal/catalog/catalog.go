// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package catalog implements the permission catalog: (method, route pattern,
// action) triples with exact and segment-wise pattern resolution, backed by a
// TTL'd action cache.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/store"
)

// Catalog owns permission records and resolves request paths to actions.
type Catalog struct {
	perms store.PermissionStore
	cache ActionCache

	// apiPrefix is the version prefix public registration must carry,
	// e.g. "/api/v1".
	apiPrefix string
}

// New constructs a Catalog. cache must not be nil; pass a memory cache for
// single-instance deployments.
func New(perms store.PermissionStore, cache ActionCache, apiPrefix string) *Catalog {
	return &Catalog{perms: perms, cache: cache, apiPrefix: apiPrefix}
}

// ResolveAction maps a concrete (method, path) to an action. The path is
// normalized (but not version-stripped; callers strip the prefix first).
// Resolution order: cache, exact (method, path) match, then a segment-wise
// pattern scan over same-method permissions in stored order — first match
// wins. Returns apperr.ErrNotFound when nothing matches.
func (c *Catalog) ResolveAction(ctx context.Context, method, path string) (string, error) {
	m, err := models.NormalizeMethod(method)
	if err != nil {
		return "", err
	}
	route := NormalizeRoute(path)

	if action, ok := c.cache.Get(ctx, m, route); ok {
		ActionCacheHitsTotal.Inc()
		return action, nil
	}
	ActionCacheMissesTotal.Inc()

	if perm, err := c.perms.FindExact(ctx, m, route); err == nil {
		ActionResolutionsTotal.WithLabelValues("exact").Inc()
		c.cache.Set(ctx, m, route, perm.Action)
		return perm.Action, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	perms, err := c.perms.ListByMethod(ctx, m)
	if err != nil {
		return "", err
	}
	for _, perm := range perms {
		if MatchPattern(perm.Route, route) {
			ActionResolutionsTotal.WithLabelValues("pattern").Inc()
			c.cache.Set(ctx, m, route, perm.Action)
			return perm.Action, nil
		}
	}

	ActionResolutionsTotal.WithLabelValues("miss").Inc()
	return "", apperr.NotFound("no permission matches %s %s", m, route)
}

// Register idempotently creates a permission from the public API. The route
// must carry the configured API prefix; it is stored with the version prefix
// stripped. Returns the existing permission when the identical triple is
// already present.
func (c *Catalog) Register(ctx context.Context, method, route, action string) (*models.Permission, error) {
	return c.register(ctx, method, route, action, true, false)
}

// Bootstrap creates a permission from an internal seeding path. It bypasses
// the prefix convention check but still normalizes the stored route.
func (c *Catalog) Bootstrap(ctx context.Context, method, route, action string) (*models.Permission, error) {
	return c.register(ctx, method, route, action, false, false)
}

// CreateOrFail creates a permission, failing with apperr.ErrConflict when the
// identical triple already exists.
func (c *Catalog) CreateOrFail(ctx context.Context, method, route, action string) (*models.Permission, error) {
	return c.register(ctx, method, route, action, true, true)
}

func (c *Catalog) register(ctx context.Context, method, route, action string, enforcePrefix, failOnDuplicate bool) (*models.Permission, error) {
	m, err := models.NormalizeMethod(method)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateAction(action); err != nil {
		return nil, err
	}

	route = NormalizeRoute(route)
	if enforcePrefix && !strings.HasPrefix(route, c.apiPrefix+"/") && route != c.apiPrefix {
		return nil, apperr.BadRequest("route %s must start with the API prefix %s", route, c.apiPrefix)
	}
	normalized := StripVersionPrefix(route)

	existing, err := c.perms.FindTriple(ctx, m, normalized, action)
	if err == nil {
		if failOnDuplicate {
			return nil, apperr.Conflict("permission (%s %s %s) already exists", m, normalized, action)
		}
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	// Reject patterns that structurally duplicate an existing same-method
	// pattern; they would make first-match resolution order-dependent.
	samemethod, err := c.perms.ListByMethod(ctx, m)
	if err != nil {
		return nil, err
	}
	for _, perm := range samemethod {
		if PatternsOverlap(perm.Route, normalized) {
			return nil, apperr.Conflict("route pattern %s overlaps existing pattern %s (action %s)",
				normalized, perm.Route, perm.Action)
		}
	}

	created, err := c.perms.Create(ctx, &models.Permission{
		Method: m,
		Route:  normalized,
		Action: action,
	})
	if err != nil {
		return nil, err
	}

	PermissionsRegisteredTotal.Inc()
	c.cache.InvalidateMethod(ctx, m)
	logging.Ctx(ctx).Info().
		Str("method", m).
		Str("route", normalized).
		Str("action", action).
		Msg("permission registered")
	return created, nil
}

// List returns all permissions in stored order.
func (c *Catalog) List(ctx context.Context) ([]models.Permission, error) {
	return c.perms.List(ctx)
}

// Delete removes a permission and invalidates its method's cache entries.
func (c *Catalog) Delete(ctx context.Context, id int64) error {
	perm, err := c.perms.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.perms.Delete(ctx, id); err != nil {
		return err
	}
	c.cache.InvalidateMethod(ctx, perm.Method)
	return nil
}

// Close releases the cache.
func (c *Catalog) Close() {
	c.cache.Close()
}
