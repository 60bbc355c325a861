// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/models"
)

// revokedKeyPrefix namespaces revocation records in BadgerDB.
const revokedKeyPrefix = "revoked:"

// BadgerBlacklist is a BadgerDB-backed Blacklist for production use.
// Records survive restarts and expire via Badger's native TTL; the sweep
// additionally removes records whose stored expiry has passed, so the
// on-disk set tracks the logical set even across clock adjustments.
type BadgerBlacklist struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// NewBadgerBlacklist opens a BadgerDB-backed blacklist at the given path.
func NewBadgerBlacklist(path string) (*BadgerBlacklist, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("token: open badger blacklist: %w", err)
	}
	return &BadgerBlacklist{db: db}, nil
}

// NewBadgerBlacklistWithDB wraps an existing BadgerDB instance, for
// deployments sharing one database across components.
func NewBadgerBlacklistWithDB(db *badger.DB) *BadgerBlacklist {
	return &BadgerBlacklist{db: db}
}

func revokedKey(tokenHash string) []byte {
	return []byte(revokedKeyPrefix + tokenHash)
}

// Revoke stores a revocation record with a TTL matching the token expiry.
func (b *BadgerBlacklist) Revoke(_ context.Context, rec *models.RevokedToken) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		BlacklistOperationsTotal.WithLabelValues("revoke", "failure").Inc()
		return ErrBlacklistClosed
	}

	cp := *rec
	if cp.RevokedAt.IsZero() {
		cp.RevokedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("token: marshal revocation record: %w", err)
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		// Already expired; nothing to blacklist.
		BlacklistOperationsTotal.WithLabelValues("revoke", "success").Inc()
		return nil
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		key := revokedKey(rec.TokenHash)
		if _, err := txn.Get(key); err == nil {
			return nil // already revoked, benign
		}
		entry := badger.NewEntry(key, data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		BlacklistOperationsTotal.WithLabelValues("revoke", "failure").Inc()
		return fmt.Errorf("token: store revocation record: %w", err)
	}

	BlacklistOperationsTotal.WithLabelValues("revoke", "success").Inc()
	return nil
}

// IsRevoked reports whether the token hash has an unexpired record.
func (b *BadgerBlacklist) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false, ErrBlacklistClosed
	}

	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(revokedKey(tokenHash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("token: blacklist lookup: %w", err)
	}

	if found {
		BlacklistOperationsTotal.WithLabelValues("check", "hit").Inc()
	} else {
		BlacklistOperationsTotal.WithLabelValues("check", "miss").Inc()
	}
	return found, nil
}

// CleanupExpired removes records whose stored expiry has passed. Badger's
// TTL handles the common case; this pass catches records whose TTL outlived
// the logical expiry.
func (b *BadgerBlacklist) CleanupExpired(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrBlacklistClosed
	}

	now := time.Now()
	var expired [][]byte

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(revokedKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var rec models.RevokedToken
				if err := json.Unmarshal(val, &rec); err != nil {
					return nil // unreadable record, leave for TTL
				}
				if now.After(rec.ExpiresAt) {
					expired = append(expired, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		BlacklistOperationsTotal.WithLabelValues("cleanup", "failure").Inc()
		return 0, fmt.Errorf("token: blacklist scan: %w", err)
	}

	for _, key := range expired {
		if err := b.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		}); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return 0, fmt.Errorf("token: blacklist delete: %w", err)
		}
	}

	BlacklistOperationsTotal.WithLabelValues("cleanup", "success").Inc()
	BlacklistSweptTotal.Add(float64(len(expired)))
	return len(expired), nil
}

// Size returns the number of records currently stored.
func (b *BadgerBlacklist) Size(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrBlacklistClosed
	}

	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(revokedKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("token: blacklist size: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (b *BadgerBlacklist) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

var _ Blacklist = (*BadgerBlacklist)(nil)
