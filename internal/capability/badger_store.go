// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/metrics"
)

// BadgerStore persists capability grants in an embedded badger database,
// keyed "<agent_id>\x00<granted_at-unixnano>\x00<grant_id>" so a prefix
// scan over an agent's keys yields its rows in grant order.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if necessary) a badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("capability: open badger store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func agentPrefix(agentID string) []byte {
	return []byte(agentID + "\x00")
}

func grantKey(g Grant) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d\x00%s", g.AgentID, g.GrantedAt.UnixNano(), g.ID))
}

// Grant implements Store.
func (s *BadgerStore) Grant(_ context.Context, agentID string, capabilities []string, reason string, duration time.Duration) (time.Time, error) {
	rows, expires := newGrantRows(agentID, capabilities, reason, duration)

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, g := range rows {
			data, err := json.Marshal(g)
			if err != nil {
				return err
			}
			if err := txn.Set(grantKey(g), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("capability: grant %s: %w", agentID, err)
	}

	logging.Info().Str("agent_id", agentID).Strs("capabilities", capabilities).
		Time("expires_at", expires).Msg("capability grant issued")
	s.refreshActiveGauge()
	return expires, nil
}

// Revoke implements Store.
func (s *BadgerStore) Revoke(_ context.Context, agentID string, capabilities []string) (int, error) {
	want := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		want[c] = true
	}
	revokeAll := len(capabilities) == 0
	now := time.Now()
	count := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = agentPrefix(agentID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var g Grant
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &g) }); err != nil {
				return err
			}
			if g.Revoked || !now.Before(g.ExpiresAt) {
				continue
			}
			if !revokeAll && !want[g.Capability] {
				continue
			}
			g.Revoked = true
			data, err := json.Marshal(g)
			if err != nil {
				return err
			}
			key := make([]byte, len(item.Key()))
			copy(key, item.Key())
			if err := txn.Set(key, data); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("capability: revoke %s: %w", agentID, err)
	}

	logging.Info().Str("agent_id", agentID).Int("revoked", count).Msg("capability grants revoked")
	s.refreshActiveGauge()
	return count, nil
}

// ActiveCapabilities implements Store.
func (s *BadgerStore) ActiveCapabilities(_ context.Context, agentID string) (map[string]bool, error) {
	now := time.Now()
	active := make(map[string]bool)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = agentPrefix(agentID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var g Grant
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &g) }); err != nil {
				return err
			}
			if g.active(now) {
				active[g.Capability] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("capability: active capabilities for %s: %w", agentID, err)
	}
	return active, nil
}

// HasCapability implements Store.
func (s *BadgerStore) HasCapability(ctx context.Context, agentID, capability string) (bool, error) {
	active, err := s.ActiveCapabilities(ctx, agentID)
	if err != nil {
		return false, err
	}
	return active[capability], nil
}

// ListGrants implements Store, newest first.
func (s *BadgerStore) ListGrants(_ context.Context, agentID string) ([]Grant, error) {
	var rows []Grant

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = agentPrefix(agentID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var g Grant
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &g) }); err != nil {
				return err
			}
			rows = append(rows, g)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("capability: list grants for %s: %w", agentID, err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// CompactExpired deletes rows whose expires_at is older than olderThan.
// Belt-and-suspenders bound on DB growth; correctness never depends on it.
func (s *BadgerStore) CompactExpired(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	count := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var toDelete [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var g Grant
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &g) }); err != nil {
				continue
			}
			if g.ExpiresAt.Before(cutoff) {
				key := make([]byte, len(item.Key()))
				copy(key, item.Key())
				toDelete = append(toDelete, key)
			}
		}
		for _, key := range toDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("capability: compact expired: %w", err)
	}
	if count > 0 {
		logging.Debug().Int("count", count).Msg("capability: compacted expired grants")
	}
	return count, nil
}

func (s *BadgerStore) refreshActiveGauge() {
	count := 0
	_ = s.db.View(func(txn *badger.Txn) error {
		now := time.Now()
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var g Grant
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &g) }); err != nil {
				continue
			}
			if g.active(now) {
				count++
			}
		}
		return nil
	})
	metrics.CapabilityGrantsActive.Set(float64(count))
}

// Close releases the underlying badger database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("capability: close badger store: %w", err)
	}
	return nil
}
