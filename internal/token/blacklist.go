// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/gatehouse/internal/models"
)

// Blacklist metrics
var (
	// BlacklistOperationsTotal counts blacklist operations by kind and outcome.
	BlacklistOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_blacklist_operations_total",
			Help: "Total number of token blacklist operations",
		},
		[]string{"operation", "outcome"}, // operation: check, revoke, cleanup
	)

	// BlacklistSize tracks the current number of revoked-token records.
	BlacklistSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "token_blacklist_size",
			Help: "Current number of revoked-token records",
		},
	)

	// BlacklistSweptTotal counts records removed by the sweep.
	BlacklistSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_blacklist_swept_total",
			Help: "Total number of expired revocation records swept",
		},
	)
)

// ErrBlacklistClosed indicates the blacklist store has been closed.
var ErrBlacklistClosed = errors.New("blacklist store is closed")

// HashToken returns the SHA-256 hex of a token string; revocation records
// key on the hash so raw tokens never sit at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Blacklist stores revoked-token records until their natural expiry. The
// check must be a pure existence lookup: it runs before signature
// verification on every verify call. Duplicate revocations of the same token
// are benign no-ops.
type Blacklist interface {
	// Revoke stores a revocation record. rec.TokenHash must be set.
	Revoke(ctx context.Context, rec *models.RevokedToken) error

	// IsRevoked reports whether the token hash is present and unexpired.
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)

	// CleanupExpired removes records whose expiry has passed.
	// Returns the number of records removed.
	CleanupExpired(ctx context.Context) (int, error)

	// Size returns the approximate number of records.
	Size(ctx context.Context) (int, error)

	// Close releases store resources.
	Close() error
}

// MemoryBlacklist is an in-memory Blacklist. Records are lost on restart;
// suitable for tests and single-instance development.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	records map[string]*models.RevokedToken
	closed  bool
}

// NewMemoryBlacklist creates an in-memory blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{records: make(map[string]*models.RevokedToken)}
}

// Revoke stores a revocation record. Re-revoking the same token keeps the
// earlier record.
func (b *MemoryBlacklist) Revoke(_ context.Context, rec *models.RevokedToken) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		BlacklistOperationsTotal.WithLabelValues("revoke", "failure").Inc()
		return ErrBlacklistClosed
	}

	if _, ok := b.records[rec.TokenHash]; !ok {
		cp := *rec
		if cp.RevokedAt.IsZero() {
			cp.RevokedAt = time.Now().UTC()
		}
		b.records[rec.TokenHash] = &cp
	}

	BlacklistOperationsTotal.WithLabelValues("revoke", "success").Inc()
	BlacklistSize.Set(float64(len(b.records)))
	return nil
}

// IsRevoked reports whether the token hash is present and unexpired.
func (b *MemoryBlacklist) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false, ErrBlacklistClosed
	}

	rec, ok := b.records[tokenHash]
	if !ok {
		BlacklistOperationsTotal.WithLabelValues("check", "miss").Inc()
		return false, nil
	}
	if time.Now().After(rec.ExpiresAt) {
		// Expired record awaiting sweep; the token is dead anyway.
		BlacklistOperationsTotal.WithLabelValues("check", "miss").Inc()
		return false, nil
	}

	BlacklistOperationsTotal.WithLabelValues("check", "hit").Inc()
	return true, nil
}

// CleanupExpired removes expired records.
func (b *MemoryBlacklist) CleanupExpired(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBlacklistClosed
	}

	count := 0
	now := time.Now()
	for hash, rec := range b.records {
		if now.After(rec.ExpiresAt) {
			delete(b.records, hash)
			count++
		}
	}

	BlacklistOperationsTotal.WithLabelValues("cleanup", "success").Inc()
	BlacklistSweptTotal.Add(float64(count))
	BlacklistSize.Set(float64(len(b.records)))
	return count, nil
}

// Size returns the number of records.
func (b *MemoryBlacklist) Size(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrBlacklistClosed
	}
	return len(b.records), nil
}

// Close closes the blacklist.
func (b *MemoryBlacklist) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.records = nil
	return nil
}

var _ Blacklist = (*MemoryBlacklist)(nil)
