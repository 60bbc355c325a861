// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/authz"
	"github.com/tomtom215/gatehouse/internal/catalog"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/rbac"
	"github.com/tomtom215/gatehouse/internal/store"
	"github.com/tomtom215/gatehouse/internal/token"
)

// Server holds every handler dependency; constructed once at startup and
// never mutated. No ambient lookup inside handlers.
type Server struct {
	cfg        *config.Config
	auth       *auth.Service
	tokens     *token.Service
	graph      *rbac.Graph
	catalog    *catalog.Catalog
	resolver   *authz.Resolver
	mw         *authz.Middleware
	principals store.PrincipalStore
	limiter    *ipLimiter
}

// NewServer wires the HTTP surface.
func NewServer(
	cfg *config.Config,
	authSvc *auth.Service,
	tokens *token.Service,
	graph *rbac.Graph,
	cat *catalog.Catalog,
	resolver *authz.Resolver,
	mw *authz.Middleware,
	principals store.PrincipalStore,
) *Server {
	reqs := cfg.Security.RateLimitReqs
	window := cfg.Security.RateLimitWindow
	if reqs <= 0 {
		reqs = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Server{
		cfg:        cfg,
		auth:       authSvc,
		tokens:     tokens,
		graph:      graph,
		catalog:    cat,
		resolver:   resolver,
		mw:         mw,
		principals: principals,
		limiter:    newIPLimiter(reqs, window),
	}
}

// Close stops the rate limiter's background sweep.
func (s *Server) Close() {
	s.limiter.close()
}

// requestID attaches a request ID to the context and response headers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// accessLog emits one structured line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Method("GET", "/metrics", promhttp.Handler())

	prefix := s.cfg.Security.APIPrefix

	// Credential routes: public, double rate-limited (per-route window via
	// httprate, per-IP token bucket via the x/time limiter).
	r.Route(prefix+"/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))
			r.Use(s.limiter.middleware)
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
		})
		r.Post("/refresh", s.handleRefresh)

		// Authenticated but not authorized; any valid principal may hit
		// these regardless of roles.
		r.Group(func(r chi.Router) {
			r.Use(s.mw.Authenticate)
			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleLogout)
		})
	})

	// Management routes: full pipeline, actions resolved per request.
	r.Group(func(r chi.Router) {
		r.Use(s.mw.Authenticate)
		r.Use(s.mw.Authorize)

		r.Route(prefix+"/roles", func(r chi.Router) {
			r.Get("/", s.handleListRoles)
			r.Post("/", s.handleCreateRole)
			r.Get("/{roleID}", s.handleGetRole)
			r.Put("/{roleID}", s.handleUpdateRole)
			r.Delete("/{roleID}", s.handleDeleteRole)

			r.Get("/{roleID}/permissions", s.handleRolePermissions)
			r.Post("/{roleID}/permissions", s.handleGrantPermissions)
			r.Put("/{roleID}/permissions", s.handleReplacePermissions)
			r.Delete("/{roleID}/permissions", s.handleRevokePermissions)
		})

		r.Route(prefix+"/permissions", func(r chi.Router) {
			r.Get("/", s.handleListPermissions)
			r.Post("/", s.handleCreatePermission)
			r.Delete("/{permissionID}", s.handleDeletePermission)
		})

		r.Route(prefix+"/users", func(r chi.Router) {
			r.Get("/{userID}/roles", s.handleUserRoles)
			r.Post("/{userID}/roles", s.handleAssignRole)
			r.Delete("/{userID}/roles/{roleName}", s.handleUnassignRole)
		})

		r.Get(prefix+"/authz/resolve", s.handleResolve)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
