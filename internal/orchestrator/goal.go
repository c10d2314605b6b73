// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator implements spec.md §6's Orchestrator RPC contract:
// submit_goal, get_goal, list_goals. A Goal is the unit of work an agent
// submits for the AI runtime to plan and execute; this package only
// tracks goal identity and status, the same way discovery.Registry only
// tracks service identity - planning and execution are the runtime's
// concern, out of scope here.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a Goal's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Goal is one row of the orchestrator's goal table.
type Goal struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Priority    int32             `json:"priority"`
	Source      string            `json:"source"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Filter narrows ListGoals. A zero-value Filter matches every goal.
type Filter struct {
	Status Status
	Source string
}

func (f Filter) matches(g Goal) bool {
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	if f.Source != "" && g.Source != f.Source {
		return false
	}
	return true
}

// Store is the in-process goal table: name -> Goal, mirroring
// discovery.Registry's single-RWMutex map shape (spec.md §5: readers are
// lock-free once loaded, mutators take the write lock briefly).
type Store struct {
	mu    sync.RWMutex
	goals map[string]Goal
}

// NewStore creates an empty goal store.
func NewStore() *Store {
	return &Store{goals: make(map[string]Goal)}
}

// Submit inserts a new goal in StatusPending and returns its assigned ID.
func (s *Store) Submit(_ context.Context, description string, priority int32, source string, tags []string, metadata map[string]string) (string, error) {
	now := time.Now()
	g := Goal{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    priority,
		Source:      source,
		Tags:        tags,
		Metadata:    metadata,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return g.ID, nil
}

// Get returns the goal with the given id.
func (s *Store) Get(_ context.Context, id string) (Goal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	return g, ok
}

// List returns every goal matching filter, newest first.
func (s *Store) List(_ context.Context, filter Filter) []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Goal, 0, len(s.goals))
	for _, g := range s.goals {
		if filter.matches(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// SetStatus transitions a goal's status, stamping UpdatedAt. Reports
// false if id is unknown.
func (s *Store) SetStatus(_ context.Context, id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return false
	}
	g.Status = status
	g.UpdatedAt = time.Now()
	s.goals[id] = g
	return true
}
