// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery implements the name -> ServiceRecord registry
// (spec.md §4.2): services register their address, heartbeat to stay
// live, and are pruned once a heartbeat window elapses. Discovery is
// advisory - a client that cannot find a name falls back to a
// statically configured address.
package discovery

import (
	"sync"
	"time"
)

// ServiceRecord is the identity of a registered backend service.
type ServiceRecord struct {
	Name          string            `json:"logical_name"`
	Address       string            `json:"address"`
	TransportKind string            `json:"transport_kind"`
	Version       string            `json:"version"`
	RegisteredAt  time.Time         `json:"registered_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Registry is a name -> ServiceRecord map guarded by a single RWMutex,
// per spec.md §5: readers are lock-free once loaded, mutators take the
// write lock briefly, and no lock is held across a suspension point.
type Registry struct {
	mu             sync.RWMutex
	records        map[string]ServiceRecord
	heartbeatTTL   time.Duration
}

// NewRegistry creates a Registry with the given heartbeat window. A
// record is considered live iff now - last_heartbeat < heartbeatTTL.
func NewRegistry(heartbeatTTL time.Duration) *Registry {
	if heartbeatTTL <= 0 {
		heartbeatTTL = 30 * time.Second
	}
	return &Registry{
		records:      make(map[string]ServiceRecord),
		heartbeatTTL: heartbeatTTL,
	}
}

// Register inserts or overwrites the record for name.
func (r *Registry) Register(name, address, transportKind, version string, metadata map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.records[name] = ServiceRecord{
		Name:          name,
		Address:       address,
		TransportKind: transportKind,
		Version:       version,
		RegisteredAt:  now,
		LastHeartbeat: now,
		Metadata:      metadata,
	}
}

// Deregister removes the record for name, if any.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, name)
}

// Heartbeat updates the last-heartbeat timestamp for name. It is a no-op
// if name is not registered.
func (r *Registry) Heartbeat(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[name]
	if !ok {
		return
	}
	rec.LastHeartbeat = time.Now()
	r.records[name] = rec
}

// Lookup returns the record for name iff it is within the heartbeat
// window; otherwise it reports not found, matching spec.md's lookup
// invariant.
func (r *Registry) Lookup(name string) (ServiceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok || !r.isLive(rec) {
		return ServiceRecord{}, false
	}
	return rec, true
}

// LookupByKind returns every live record whose TransportKind matches kind.
func (r *Registry) LookupByKind(kind string) []ServiceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ServiceRecord
	for _, rec := range r.records {
		if rec.TransportKind == kind && r.isLive(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// PruneStale removes and returns the names of every record whose
// heartbeat has expired.
func (r *Registry) PruneStale() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pruned []string
	now := time.Now()
	for name, rec := range r.records {
		if now.Sub(rec.LastHeartbeat) >= r.heartbeatTTL {
			delete(r.records, name)
			pruned = append(pruned, name)
		}
	}
	return pruned
}

// isLive reports whether rec's heartbeat is still within the window.
// Caller must hold at least a read lock.
func (r *Registry) isLive(rec ServiceRecord) bool {
	return time.Since(rec.LastHeartbeat) < r.heartbeatTTL
}

// Count returns the number of registered records, live or not. Useful
// for tests and the management endpoint.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
