// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package main is the entry point for the Gatehouse server.
//
// Gatehouse is a self-hosted RBAC authorization service: it manages
// principals, roles, and a permission catalog keyed by HTTP route
// patterns, issues and revokes JWT token pairs, and answers
// authorization decisions for every protected request.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Stores: PostgreSQL (pgx) when DATABASE_URL is set, in-memory otherwise
//  3. Permission catalog: route-pattern matching with a memory or Redis action cache
//  4. Token service: HS256 JWT pairs with a memory or Badger revocation blacklist
//  5. Auth service: credential flows with bcrypt and a circuit-broken mailer
//  6. HTTP server: chi router with authentication and authorization middleware
//  7. Supervisor tree: suture v4 manages the HTTP server and maintenance sweeps
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. JWT_SECRET must be at least 32 characters.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree stops its services, the HTTP server drains in-flight
// requests (10s timeout), and store backends are closed.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/tomtom215/gatehouse/internal/api"
	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/authz"
	"github.com/tomtom215/gatehouse/internal/catalog"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/mailer"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/rbac"
	"github.com/tomtom215/gatehouse/internal/store"
	"github.com/tomtom215/gatehouse/internal/supervisor"
	"github.com/tomtom215/gatehouse/internal/token"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("postgres", cfg.Database.URL != "").
		Str("cache_backend", cfg.Cache.Backend).
		Str("blacklist_backend", cfg.Blacklist.Backend).
		Str("registration_mode", cfg.Security.RegistrationMode).
		Msg("Configuration loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// === STORES ===

	var (
		principals  store.PrincipalStore
		roles       store.RoleStore
		perms       store.PermissionStore
		resetTokens store.ResetTokenStore
	)
	if cfg.Database.URL != "" {
		pool, poolErr := store.NewPool(ctx, cfg.Database)
		if poolErr != nil {
			logging.Fatal().Err(poolErr).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		principals = store.NewPGPrincipalStore(pool)
		roles = store.NewPGRoleStore(pool)
		perms = store.NewPGPermissionStore(pool)
		resetTokens = store.NewPGResetTokenStore(pool)
		logging.Info().Msg("PostgreSQL stores initialized")
	} else {
		memPerms := store.NewMemoryPermissionStore()
		memRoles := store.NewMemoryRoleStore(memPerms)
		memPrincipals := store.NewMemoryPrincipalStore(memRoles)
		memRoles.Bind(memPrincipals)
		principals = memPrincipals
		roles = memRoles
		perms = memPerms
		resetTokens = store.NewMemoryResetTokenStore()
		logging.Warn().Msg("No database URL configured, using in-memory stores (data is not persisted)")
	}

	// === PERMISSION CATALOG ===

	var cache catalog.ActionCache
	if cfg.Cache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		defer func() {
			if err := client.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Redis client")
			}
		}()
		cache = catalog.NewRedisActionCache(client, cfg.Cache.TTL)
		logging.Info().Str("redis_addr", cfg.Cache.RedisAddr).Msg("Redis action cache initialized")
	} else {
		cache = catalog.NewMemoryActionCache(cfg.Cache.TTL)
	}
	cat := catalog.New(perms, cache, cfg.Security.APIPrefix)
	graph := rbac.NewGraph(roles, perms, principals)

	if err := seedRoles(ctx, roles, cfg.Security.DefaultRole, "ADMIN"); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed built-in roles")
	}

	// === TOKENS AND AUTH ===

	var blacklist token.Blacklist
	if cfg.Blacklist.Backend == "badger" {
		badgerBL, blErr := token.NewBadgerBlacklist(cfg.Blacklist.Path)
		if blErr != nil {
			logging.Fatal().Err(blErr).Str("path", cfg.Blacklist.Path).Msg("Failed to open Badger blacklist")
		}
		defer func() {
			if err := badgerBL.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Badger blacklist")
			}
		}()
		blacklist = badgerBL
		logging.Info().Str("path", cfg.Blacklist.Path).Msg("Badger token blacklist initialized")
	} else {
		blacklist = token.NewMemoryBlacklist()
	}

	tokens := token.NewService(principals, blacklist, cfg.Security)

	var mail mailer.Mailer
	if cfg.Mailer.Backend == "log" {
		mail = mailer.NewLogMailer(cfg.Mailer)
	} else {
		mail = mailer.NoopMailer{}
	}
	mail = mailer.NewBreakerMailer(mail)

	var invitations auth.InvitationValidator
	if cfg.Security.RegistrationMode == auth.RegistrationInvitation {
		invitations = auth.NewStaticInvitations(cfg.Security.InvitationCodes)
		logging.Info().Int("codes", len(cfg.Security.InvitationCodes)).Msg("Invitation-mode registration enabled")
	}

	authSvc := auth.NewService(principals, roles, resetTokens, tokens, mail, invitations, cfg.Security, cfg.Mailer)

	// === HTTP SERVER ===

	resolver := authz.NewResolver(cat)
	mw := authz.NewMiddleware(tokens, graph, resolver)
	srv := api.NewServer(cfg, authSvc, tokens, graph, cat, resolver, mw, principals)
	defer srv.Close()

	// === SUPERVISOR TREE ===

	tree := supervisor.NewTree(slog.New(logging.NewSlogHandler()), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(cfg.Server.Addr(), srv.Router(), cfg.Server.Timeout))
	tree.AddMaintenanceService(supervisor.NewSweepService(blacklist, resetTokens, cfg.Blacklist.SweepInterval))

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// seedRoles creates the built-in roles when they do not exist yet. An
// existing role of the same name is left untouched.
func seedRoles(ctx context.Context, roles store.RoleStore, names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		_, err := roles.Create(ctx, &models.Role{
			Name:        name,
			Description: "Built-in role",
		})
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			return err
		}
	}
	return nil
}
