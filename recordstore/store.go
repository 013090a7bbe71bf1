// Copyright 2019 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package recordstore holds decoded Kafka records in a single process-wide,
// in-memory SQL engine: one table per (cluster, topic), guarded by a single
// fair mutex so long-running ingestion and interactive queries take turns
// rather than one starving the other.
package recordstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/spothero/kafkacore/errs"
	"github.com/spothero/kafkacore/internal/fairmutex"
	"github.com/spothero/kafkacore/log"
	"github.com/spothero/kafkacore/record"
	"go.uber.org/zap"
)

// Store is the embedded, in-memory SQL-backed record store shared by every
// cluster and topic in the process.
type Store struct {
	db    *sqlx.DB
	mu    *fairmutex.Mutex
	known map[string]bool // tableName -> created
}

// Open creates an in-memory SQLite-backed Store.
func Open(ctx context.Context) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", "file::memory:?cache=shared")
	if err != nil {
		return nil, errs.SQL("failed to open in-memory record store", err)
	}
	db.SetMaxOpenConns(1) // a shared in-memory SQLite connection is single-threaded
	return &Store{db: db, mu: fairmutex.New(), known: map[string]bool{}}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// tableName forms the quoted per-(cluster,topic) identifier.
func tableName(clusterID, topic string) string {
	return fmt.Sprintf("'[%s].[%s]'", clusterID, topic)
}

// CreateTopicTable creates the record table for (clusterID, topic) if it does
// not already exist. Idempotent: safe to call once per lazily-constructed
// Consumer.
func (s *Store) CreateTopicTable(ctx context.Context, clusterID, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := tableName(clusterID, topic)
	if s.known[table] {
		return nil
	}
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (partition NUMBER, offset NUMBER, timestamp NUMBER, key TEXT, payload TEXT)`,
		table,
	)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return errs.SQL(fmt.Sprintf("failed to create table for topic %s", topic), err)
	}
	s.known[table] = true
	log.Get(ctx).Debug("created record table", zap.String("cluster_id", clusterID), zap.String("topic", topic))
	return nil
}

// InsertRecord appends one row to (clusterID, topic)'s table.
func (s *Store) InsertRecord(ctx context.Context, clusterID, topic string, rec record.Parsed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := tableName(clusterID, topic)
	stmt := fmt.Sprintf(
		`INSERT INTO %s (partition, offset, timestamp, key, payload) VALUES (?, ?, ?, ?, ?)`, table)
	if _, err := s.db.ExecContext(ctx, stmt, rec.Partition, rec.Offset, rec.Timestamp, rec.Key, rec.Payload); err != nil {
		return errs.SQL(fmt.Sprintf("failed to insert record into topic %s", topic), err)
	}
	return nil
}

// GetRecords returns a page of records ordered by timestamp descending.
func (s *Store) GetRecords(ctx context.Context, clusterID, topic string, offset, limit int) ([]record.Parsed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := tableName(clusterID, topic)
	stmt := fmt.Sprintf(
		`SELECT partition, offset, timestamp, key, payload FROM %s ORDER BY timestamp DESC LIMIT ? OFFSET ?`, table)
	return s.queryLocked(ctx, stmt, topic, []interface{}{limit, offset})
}

// GetSize returns the total row count for (clusterID, topic).
func (s *Store) GetSize(ctx context.Context, clusterID, topic string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := tableName(clusterID, topic)
	var count int
	stmt := fmt.Sprintf(`SELECT count(*) FROM %s`, table)
	if err := s.db.GetContext(ctx, &count, stmt); err != nil {
		return 0, errs.SQL(fmt.Sprintf("failed to count rows for topic %s", topic), err)
	}
	return count, nil
}

// Clear deletes every row from (clusterID, topic)'s table; the table itself
// is kept.
func (s *Store) Clear(ctx context.Context, clusterID, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := tableName(clusterID, topic)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return errs.SQL(fmt.Sprintf("failed to clear topic %s", topic), err)
	}
	return nil
}

// ParseQuery substitutes the {:topic}, {:limit}, {:offset} placeholders in
// q.QueryTemplate via literal string replacement and strips one trailing
// semicolon.
func ParseQuery(q record.Query) string {
	stmt := q.QueryTemplate
	stmt = strings.ReplaceAll(stmt, "{:topic}", tableName(q.ClusterID, q.TopicName))
	stmt = strings.ReplaceAll(stmt, "{:limit}", strconv.Itoa(q.Limit))
	stmt = strings.ReplaceAll(stmt, "{:offset}", strconv.Itoa(q.Offset))
	stmt = strings.TrimRight(stmt, " \t\n")
	stmt = strings.TrimSuffix(stmt, ";")
	return stmt
}

// QueryRecords executes an ad-hoc, template-substituted SELECT and maps
// every row to a Parsed record stamped with q.TopicName.
func (s *Store) QueryRecords(ctx context.Context, q record.Query) ([]record.Parsed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(ctx, ParseQuery(q), q.TopicName, nil)
}

// queryLocked executes stmt and scans rows into Parsed records. args are
// bound parameters for GetRecords' LIMIT/OFFSET placeholders; QueryRecords
// passes nil since its template already substituted literal values.
func (s *Store) queryLocked(ctx context.Context, stmt, topic string, args []interface{}) ([]record.Parsed, error) {
	rows, err := s.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, errs.SQL(fmt.Sprintf("query against topic %s failed", topic), err)
	}
	defer rows.Close()
	var out []record.Parsed
	for rows.Next() {
		var rec record.Parsed
		if err := rows.StructScan(&rec); err != nil {
			return nil, errs.SQL(fmt.Sprintf("failed to scan row for topic %s", topic), err)
		}
		rec.Topic = topic
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.SQL(fmt.Sprintf("row iteration failed for topic %s", topic), err)
	}
	return out, nil
}

// GetSizeWithQuery wraps an ad-hoc query in a COUNT(*) and returns the
// single resulting row's count, failing with errs.SQL if no row is returned.
func (s *Store) GetSizeWithQuery(ctx context.Context, q record.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner := ParseQuery(q)
	stmt := fmt.Sprintf(`SELECT count(*) FROM ( %s )`, inner)
	var count int
	if err := s.db.GetContext(ctx, &count, stmt); err != nil {
		return 0, errs.SQL("ad-hoc count query returned no row", err)
	}
	return count, nil
}
