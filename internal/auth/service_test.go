// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/gatehouse/internal/apperr"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/mailer"
	"github.com/tomtom215/gatehouse/internal/models"
	"github.com/tomtom215/gatehouse/internal/store"
	"github.com/tomtom215/gatehouse/internal/token"
)

type captureMailer struct {
	sent []string
	fail bool
}

func (m *captureMailer) Send(_ context.Context, to, _, _, _ string) error {
	if m.fail {
		return fmt.Errorf("smtp unreachable")
	}
	m.sent = append(m.sent, to)
	return nil
}

type stubInvitations struct {
	valid    map[string]bool
	consumed []string
}

func (s *stubInvitations) Validate(_ context.Context, code, _ string) error {
	if !s.valid[code] {
		return fmt.Errorf("unknown invitation code")
	}
	return nil
}

func (s *stubInvitations) Consume(_ context.Context, code string) error {
	s.consumed = append(s.consumed, code)
	return nil
}

type fixture struct {
	svc         *Service
	principals  *store.MemoryPrincipalStore
	roles       *store.MemoryRoleStore
	resetTokens *store.MemoryResetTokenStore
	tokens      *token.Service
	mail        *captureMailer
	invitations *stubInvitations
}

func newFixture(t *testing.T, sec config.SecurityConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	perms := store.NewMemoryPermissionStore()
	roles := store.NewMemoryRoleStore(perms)
	principals := store.NewMemoryPrincipalStore(roles)
	roles.Bind(principals)
	resetTokens := store.NewMemoryResetTokenStore()

	if _, err := roles.Create(ctx, &models.Role{Name: "USER"}); err != nil {
		t.Fatalf("create default role: %v", err)
	}

	bl := token.NewMemoryBlacklist()
	t.Cleanup(func() { bl.Close() })
	tokens := token.NewService(principals, bl, sec)

	mail := &captureMailer{}
	invitations := &stubInvitations{valid: map[string]bool{"GOLDEN-TICKET": true}}

	svc := NewService(principals, roles, resetTokens, tokens, mail, invitations,
		sec, config.MailerConfig{From: "noreply@example.com", ResetURLBase: "https://example.com/reset?token="})

	return &fixture{
		svc:         svc,
		principals:  principals,
		roles:       roles,
		resetTokens: resetTokens,
		tokens:      tokens,
		mail:        mail,
		invitations: invitations,
	}
}

func openConfig() config.SecurityConfig {
	return config.SecurityConfig{
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		AccessTokenExpiry:  "15m",
		RefreshTokenExpiry: "7d",
		ResetTokenTTL:      time.Hour,
		RegistrationMode:   RegistrationOpen,
		DefaultRole:        "USER",
		BcryptCost:         bcrypt.MinCost,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	p, err := f.svc.Register(ctx, "Alice@Example.com", "s3cret-pass", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", p.Email)
	}
	if p.PublicID == "" {
		t.Error("public ID not generated")
	}

	names, err := f.principals.RoleNames(ctx, p.ID)
	if err != nil {
		t.Fatalf("role names: %v", err)
	}
	if len(names) != 1 || names[0] != "USER" {
		t.Errorf("roles after register = %v, want [USER]", names)
	}

	pair, logged, err := f.svc.Login(ctx, "alice@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != p.ID {
		t.Errorf("login returned principal %d, want %d", logged.ID, p.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Error("login returned empty token pair")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "bob@example.com", "pass1", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := f.svc.Register(ctx, "bob@example.com", "pass2", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate register: err = %v, want ErrConflict", err)
	}
}

func TestRegisterInvitationMode(t *testing.T) {
	sec := openConfig()
	sec.RegistrationMode = RegistrationInvitation
	f := newFixture(t, sec)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "eve@example.com", "pass", "WRONG-CODE"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("bad invitation: err = %v, want ErrForbidden", err)
	}

	if _, err := f.svc.Register(ctx, "carol@example.com", "pass", "GOLDEN-TICKET"); err != nil {
		t.Fatalf("register with invitation: %v", err)
	}
	if len(f.invitations.consumed) != 1 || f.invitations.consumed[0] != "GOLDEN-TICKET" {
		t.Errorf("consumed = %v, want [GOLDEN-TICKET]", f.invitations.consumed)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	p, err := f.svc.Register(ctx, "dave@example.com", "right-pass", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
		setup    func()
	}{
		{"unknown email", "nobody@example.com", "whatever", nil},
		{"wrong password", "dave@example.com", "wrong-pass", nil},
		{"deactivated", "dave@example.com", "right-pass", func() {
			p.IsActive = false
			if err := f.principals.Save(ctx, p); err != nil {
				t.Fatalf("save: %v", err)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			_, _, err := f.svc.Login(ctx, tc.email, tc.password)
			if !errors.Is(err, apperr.ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
			if err == nil || err.Error() != "unauthorized: invalid credentials" {
				t.Errorf("error message %q leaks failure cause", err)
			}
		})
	}
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "frank@example.com", "pass", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _, err := f.svc.Login(ctx, "frank@example.com", "pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := f.svc.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := f.tokens.Verify(ctx, pair.AccessToken, token.TypeAccess); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("access token after logout: err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.tokens.Verify(ctx, pair.RefreshToken, token.TypeRefresh); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("refresh token after logout: err = %v, want ErrUnauthorized", err)
	}
}

func TestForgotPasswordIsSilent(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	// Unknown email succeeds without sending mail.
	if err := f.svc.ForgotPassword(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("forgot unknown: %v", err)
	}
	if len(f.mail.sent) != 0 {
		t.Errorf("mail sent for unknown email: %v", f.mail.sent)
	}

	if _, err := f.svc.Register(ctx, "grace@example.com", "pass", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.svc.ForgotPassword(ctx, "grace@example.com"); err != nil {
		t.Fatalf("forgot known: %v", err)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0] != "grace@example.com" {
		t.Errorf("sent = %v, want [grace@example.com]", f.mail.sent)
	}

	// Mailer failure is still reported as success.
	f.mail.fail = true
	if err := f.svc.ForgotPassword(ctx, "grace@example.com"); err != nil {
		t.Errorf("forgot with failing mailer: %v", err)
	}
}

func TestResetPasswordSingleUse(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	p, err := f.svc.Register(ctx, "heidi@example.com", "old-pass", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rt := &models.PasswordResetToken{
		Token:       "reset-token-value",
		PrincipalID: p.ID,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := f.resetTokens.Create(ctx, rt); err != nil {
		t.Fatalf("create reset token: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, "reset-token-value", "new-pass"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, _, err := f.svc.Login(ctx, "heidi@example.com", "old-pass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("old password still works: err = %v", err)
	}
	if _, _, err := f.svc.Login(ctx, "heidi@example.com", "new-pass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// Second use of the same token is rejected.
	if err := f.svc.ResetPassword(ctx, "reset-token-value", "third-pass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("reused token: err = %v, want ErrUnauthorized", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t, openConfig())
	ctx := context.Background()

	p, err := f.svc.Register(ctx, "ivan@example.com", "pass", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rt := &models.PasswordResetToken{
		Token:       "stale-token",
		PrincipalID: p.ID,
		ExpiresAt:   time.Now().Add(-time.Minute),
	}
	if err := f.resetTokens.Create(ctx, rt); err != nil {
		t.Fatalf("create reset token: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, "stale-token", "new-pass"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expired token: err = %v, want ErrUnauthorized", err)
	}
}

func TestResetPasswordUnknownToken(t *testing.T) {
	f := newFixture(t, openConfig())

	err := f.svc.ResetPassword(context.Background(), "no-such-token", "pass")
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown token: err = %v, want ErrUnauthorized", err)
	}
}

var _ mailer.Mailer = (*captureMailer)(nil)
