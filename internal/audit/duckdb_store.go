// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// DuckDBStore implements Store using DuckDB for durable, SQL-filterable
// persistence. This is the production backend, rooted at data/audit.db.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewDuckDBStore wraps an open DuckDB connection. The caller must call
// CreateTable before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_entries table and its indexes if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id BIGINT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			agent_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			duration_ms BIGINT NOT NULL,
			input_digest TEXT,
			output_digest TEXT,
			error_message TEXT,
			remote_node_id TEXT
		);
		CREATE SEQUENCE IF NOT EXISTS audit_entries_id_seq START 1;
		CREATE INDEX IF NOT EXISTS idx_audit_agent_id ON audit_entries(agent_id);
		CREATE INDEX IF NOT EXISTS idx_audit_tool_name ON audit_entries(tool_name);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp DESC);
	`
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: create schema: %w", err)
		}
	}
	logging.Info().Msg("audit ledger schema verified")
	return nil
}

// Save appends an entry, assigning id/timestamp from the DB sequence.
func (s *DuckDBStore) Save(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry == nil {
		return fmt.Errorf("audit: entry cannot be nil")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, "SELECT nextval('audit_entries_id_seq')")
	if err := row.Scan(&entry.ID); err != nil {
		return fmt.Errorf("audit: assign id: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, timestamp, agent_id, tool_name, action, outcome,
			duration_ms, input_digest, output_digest, error_message, remote_node_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, entry.AgentID, entry.ToolName, entry.Action, string(entry.Outcome),
		entry.DurationMS, nullableString(entry.InputDigest), nullableString(entry.OutputDigest),
		nullableString(entry.ErrorMessage), nullableString(entry.RemoteNodeID),
	)
	if err != nil {
		return fmt.Errorf("audit: save entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *DuckDBStore) Get(ctx context.Context, id int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+" FROM audit_entries WHERE id = ?", id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit: entry not found: %d", id)
		}
		return nil, fmt.Errorf("audit: get entry: %w", err)
	}
	return entry, nil
}

// Query retrieves entries matching the filter, ordered by id descending.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntryRows(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("audit: failed to scan row")
			continue
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("audit: count entries: %w", err)
	}
	return count, nil
}

// Delete removes entries older than olderThan.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_entries WHERE timestamp < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("audit: delete old entries: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: rows affected: %w", err)
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("deleted old audit entries")
	}
	return count, nil
}

const selectColumns = `
	SELECT id, timestamp, agent_id, tool_name, action, outcome,
	       duration_ms, input_digest, output_digest, error_message, remote_node_id`

func buildQuery(filter QueryFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	conditions, args = appendStringCondition(conditions, args, "agent_id", filter.AgentID)
	conditions, args = appendStringCondition(conditions, args, "tool_name", filter.ToolName)
	conditions, args = appendStringCondition(conditions, args, "outcome", string(filter.Outcome))

	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.EndTime)
	}

	var query string
	if countOnly {
		query = "SELECT COUNT(*) FROM audit_entries"
	} else {
		query = selectColumns + " FROM audit_entries"
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if !countOnly {
		query += " ORDER BY id DESC"
		if filter.Limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		}
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	return query, args
}

func appendStringCondition(conditions []string, args []interface{}, column, value string) ([]string, []interface{}) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row *sql.Row) (*Entry, error) {
	return scanRow(row)
}

func scanEntryRows(rows *sql.Rows) (*Entry, error) {
	return scanRow(rows)
}

func scanRow(scanner rowScanner) (*Entry, error) {
	var e Entry
	var outcome string
	var inputDigest, outputDigest, errMsg, remoteNode sql.NullString

	if err := scanner.Scan(
		&e.ID, &e.Timestamp, &e.AgentID, &e.ToolName, &e.Action, &outcome,
		&e.DurationMS, &inputDigest, &outputDigest, &errMsg, &remoteNode,
	); err != nil {
		return nil, err
	}

	e.Outcome = Outcome(outcome)
	e.InputDigest = inputDigest.String
	e.OutputDigest = outputDigest.String
	e.ErrorMessage = errMsg.String
	e.RemoteNodeID = remoteNode.String
	return &e, nil
}
