// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package auth implements credential flows: login, registration (open and
// invitation modes), logout, and the single-use password-reset token flow.
// Token issuance and verification live in the token package; this package
// owns password hashing and the principal lifecycle around it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/mailer"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/store"
	"github.com/tomtom215/gatehouse/internal/token"
)

// Registration modes.
const (
	RegistrationOpen       = "open"
	RegistrationInvitation = "invitation"
)

// InvitationValidator gates registration in invitation mode. Validate
// reports whether the code admits the email; Consume burns the code after
// a successful registration.
type InvitationValidator interface {
	Validate(ctx context.Context, code, email string) error
	Consume(ctx context.Context, code string) error
}

// Service wires credential flows over the principal store, role graph,
// token service, reset-token store, and mailer.
type Service struct {
	principals  store.PrincipalStore
	roles       store.RoleStore
	resetTokens store.ResetTokenStore
	tokens      *token.Service
	mail        mailer.Mailer
	invitations InvitationValidator

	registrationMode string
	defaultRole      string
	bcryptCost       int
	resetTTL         time.Duration
	resetURLBase     string
}

// NewService builds the auth service. invitations may be nil when
// registration mode is open.
func NewService(
	principals store.PrincipalStore,
	roles store.RoleStore,
	resetTokens store.ResetTokenStore,
	tokens *token.Service,
	mail mailer.Mailer,
	invitations InvitationValidator,
	sec config.SecurityConfig,
	mailCfg config.MailerConfig,
) *Service {
	cost := sec.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		principals:       principals,
		roles:            roles,
		resetTokens:      resetTokens,
		tokens:           tokens,
		mail:             mail,
		invitations:      invitations,
		registrationMode: sec.RegistrationMode,
		defaultRole:      sec.DefaultRole,
		bcryptCost:       cost,
		resetTTL:         sec.ResetTokenTTL,
		resetURLBase:     mailCfg.ResetURLBase,
	}
}

// Login verifies credentials and issues a token pair. Unknown email, wrong
// password, and deactivated account all return the same Unauthorized error.
func (s *Service) Login(ctx context.Context, email, password string) (*token.Pair, *models.Principal, error) {
	p, err := s.principals.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// Burn a comparison anyway so response timing does not
			// distinguish unknown emails from wrong passwords.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			LoginsTotal.WithLabelValues("unknown_email").Inc()
			return nil, nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, nil, fmt.Errorf("auth: login lookup: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		LoginsTotal.WithLabelValues("bad_password").Inc()
		return nil, nil, apperr.Unauthorized("invalid credentials")
	}
	if !p.IsActive {
		LoginsTotal.WithLabelValues("inactive").Inc()
		return nil, nil, apperr.Unauthorized("invalid credentials")
	}

	pair, err := s.tokens.IssuePair(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	LoginsTotal.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Info().Str("principal", p.PublicID).Msg("login succeeded")
	return pair, p, nil
}

// dummyHash is a bcrypt hash of an unguessable value, compared against on
// unknown-email logins to equalize timing.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// Register creates a principal and assigns the default role. In invitation
// mode a valid invitation code is required and consumed on success.
func (s *Service) Register(ctx context.Context, email, password, inviteCode string) (*models.Principal, error) {
	email = normalizeEmail(email)

	if s.registrationMode == RegistrationInvitation {
		if s.invitations == nil {
			return nil, apperr.Forbidden("registration is invitation-only")
		}
		if err := s.invitations.Validate(ctx, inviteCode, email); err != nil {
			RegistrationsTotal.WithLabelValues("invitation_rejected").Inc()
			return nil, apperr.Forbidden("invalid invitation code")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	p, err := s.principals.Create(ctx, &models.Principal{
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			RegistrationsTotal.WithLabelValues("duplicate").Inc()
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("auth: create principal: %w", err)
	}

	if s.defaultRole != "" {
		role, err := s.roles.FindByName(ctx, s.defaultRole)
		if err != nil {
			// Principal exists without the default role; an operator
			// assigns one later. Registration still succeeds.
			logging.Ctx(ctx).Warn().
				Str("role", s.defaultRole).
				Err(err).
				Msg("default role missing, registered principal has no roles")
		} else if err := s.principals.AssignRole(ctx, p.ID, role.ID, p.ID); err != nil {
			return nil, fmt.Errorf("auth: assign default role: %w", err)
		}
	}

	if s.registrationMode == RegistrationInvitation {
		if err := s.invitations.Consume(ctx, inviteCode); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("invitation consume failed after registration")
		}
	}

	RegistrationsTotal.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Info().Str("principal", p.PublicID).Msg("principal registered")
	return p, nil
}

// Logout revokes both tokens of a session. The access token is required;
// the refresh token is revoked too when supplied.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, accessToken, "logout"); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken, "logout"); err != nil {
			return err
		}
	}
	return nil
}

// ForgotPassword issues a single-use reset token and mails the reset link.
// Always reports success: neither an unknown email nor a mail failure is
// observable by the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	p, err := s.principals.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(err).Msg("forgot-password lookup failed")
		}
		return nil
	}

	rt := &models.PasswordResetToken{
		Token:       uuid.NewString(),
		PrincipalID: p.ID,
		ExpiresAt:   time.Now().Add(s.resetTTL),
	}
	if err := s.resetTokens.Create(ctx, rt); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("reset token create failed")
		return nil
	}

	link := s.resetURLBase + rt.Token
	text := fmt.Sprintf("Reset your password within %s: %s", s.resetTTL, link)
	html := fmt.Sprintf(`<p>Reset your password within %s: <a href=%q>%s</a></p>`, s.resetTTL, link, link)
	if err := s.mail.Send(ctx, p.Email, "Password reset", html, text); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("reset mail send failed")
	}

	PasswordResetsTotal.WithLabelValues("requested").Inc()
	return nil
}

// ResetPassword consumes a reset token and replaces the password. The token
// must exist, be unexpired, and never have been used; consumption is
// permanent even if a later step fails.
func (s *Service) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	rt, err := s.resetTokens.FindByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			PasswordResetsTotal.WithLabelValues("invalid").Inc()
			return apperr.Unauthorized("invalid or expired reset token")
		}
		return fmt.Errorf("auth: reset token lookup: %w", err)
	}
	if rt.Used || time.Now().After(rt.ExpiresAt) {
		PasswordResetsTotal.WithLabelValues("invalid").Inc()
		return apperr.Unauthorized("invalid or expired reset token")
	}

	if err := s.resetTokens.MarkUsed(ctx, rt.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Lost a race with a concurrent reset on the same token.
			PasswordResetsTotal.WithLabelValues("invalid").Inc()
			return apperr.Unauthorized("invalid or expired reset token")
		}
		return fmt.Errorf("auth: mark reset token used: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("auth: hash new password: %w", err)
	}

	p, err := s.principals.FindByID(ctx, rt.PrincipalID)
	if err != nil {
		return fmt.Errorf("auth: load principal for reset: %w", err)
	}
	p.PasswordHash = string(hash)
	if err := s.principals.Save(ctx, p); err != nil {
		return fmt.Errorf("auth: save new password: %w", err)
	}

	PasswordResetsTotal.WithLabelValues("completed").Inc()
	logging.Ctx(ctx).Info().Str("principal", p.PublicID).Msg("password reset completed")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
