// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package mailer delivers password-reset mail. The auth service reports
// forgot-password success regardless of delivery outcome, so mailer errors
// never leak account existence; the breaker wrapper keeps a failing
// provider from stalling request handlers.
package mailer

import (
	"context"

	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
)

// Mailer sends a single message. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// LogMailer writes mail to the structured log instead of delivering it.
// Default backend for development and tests.
type LogMailer struct {
	From string
}

// NewLogMailer returns a LogMailer using the configured sender address.
func NewLogMailer(cfg config.MailerConfig) *LogMailer {
	return &LogMailer{From: cfg.From}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, _, textBody string) error {
	logging.Ctx(ctx).Info().
		Str("from", m.From).
		Str("to", to).
		Str("subject", subject).
		Str("body", textBody).
		Msg("mail delivered to log")
	return nil
}

// NoopMailer discards mail. Used when delivery is disabled entirely.
type NoopMailer struct{}

func (NoopMailer) Send(context.Context, string, string, string, string) error {
	return nil
}

var (
	_ Mailer = (*LogMailer)(nil)
	_ Mailer = NoopMailer{}
)
