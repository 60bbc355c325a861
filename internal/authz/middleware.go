// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/catalog"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/rbac"
	"github.com/tomtom215/gatehouse/internal/token"
)

type contextKey int

const (
	claimsKey contextKey = iota
	rawTokenKey
)

// ClaimsFromContext returns the verified claims set by Authenticate.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*token.Claims)
	return c, ok
}

// RawTokenFromContext returns the bearer token Authenticate verified.
// Logout needs the raw string to blacklist it.
func RawTokenFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(rawTokenKey).(string)
	return raw, ok
}

// Middleware carries the Authenticate and Authorize request-pipeline steps.
// They are independently mountable; public routes mount neither.
type Middleware struct {
	tokens   *token.Service
	graph    *rbac.Graph
	resolver *Resolver
}

// NewMiddleware builds the middleware over the token service, the role
// graph, and the action resolver.
func NewMiddleware(tokens *token.Service, graph *rbac.Graph, resolver *Resolver) *Middleware {
	return &Middleware{tokens: tokens, graph: graph, resolver: resolver}
}

// Authenticate extracts the bearer token, verifies it as an access token,
// and stores the claims in the request context. Token service errors
// propagate untouched; a missing header is Unauthorized.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			AuthenticationsTotal.WithLabelValues("missing").Inc()
			WriteError(w, r, err)
			return
		}

		claims, err := m.tokens.Verify(r.Context(), raw, token.TypeAccess)
		if err != nil {
			AuthenticationsTotal.WithLabelValues("rejected").Inc()
			WriteError(w, r, err)
			return
		}

		AuthenticationsTotal.WithLabelValues("ok").Inc()
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, rawTokenKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize strips the version prefix, resolves the action, and checks the
// principal's roles against the graph. Requires Authenticate upstream.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperr.Unauthorized("no authentication context"))
			return
		}

		path := catalog.StripVersionPrefix(r.URL.Path)
		var extra []string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				extra = append(extra, catalog.StripVersionPrefix(chiToPatternSyntax(pattern)))
			}
		}

		action, source, err := m.resolver.ResolveAction(r.Context(), r.Method, path, extra...)
		if err != nil {
			DecisionsTotal.WithLabelValues("error", "none").Inc()
			WriteError(w, r, err)
			return
		}

		allowed, err := m.graph.IsAuthorized(r.Context(), claims.Roles, r.Method, action)
		DecisionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			DecisionsTotal.WithLabelValues("error", source).Inc()
			logging.Ctx(r.Context()).Error().Err(err).Str("action", action).Msg("authorization check failed")
			WriteError(w, r, apperr.ErrInternal)
			return
		}
		if !allowed {
			DecisionsTotal.WithLabelValues("deny", source).Inc()
			logging.Ctx(r.Context()).Warn().
				Str("principal", claims.Subject).
				Str("action", action).
				Strs("roles", claims.Roles).
				Msg("authorization denied")
			WriteError(w, r, apperr.Forbidden("insufficient permissions for %s", action))
			return
		}

		DecisionsTotal.WithLabelValues("allow", source).Inc()
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.Unauthorized("missing authorization header")
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", apperr.Unauthorized("authorization header is not a bearer token")
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

// chiToPatternSyntax rewrites chi's {param} segments to the catalog's
// :param form so the router template can serve as a lookup variant.
func chiToPatternSyntax(pattern string) string {
	segs := strings.Split(pattern, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			segs[i] = ":" + strings.Trim(s, "{}")
		}
	}
	return strings.Join(segs, "/")
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError maps the error taxonomy to HTTP statuses. Internal errors
// never leak detail to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, apperr.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, apperr.ErrBadRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(errorBody{Error: message}); encodeErr != nil {
		logging.Ctx(r.Context()).Error().Err(encodeErr).Msg("error response encode failed")
	}
}
