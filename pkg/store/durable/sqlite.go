package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"sentinel-hq/aegis/pkg/vector"
)

// ErrNotFound indicates the rule id has no row in the durable store.
var ErrNotFound = errors.New("rule not found in durable store")

// Config configures the SQLite backend.
type Config struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Metadata describes a stored vector's indexed attributes.
type Metadata struct {
	Layer    string
	FamilyID string
	AgentID  string
}

// Store is the durable tier backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	getStmt         *sql.Stmt
	upsertStmt      *sql.Stmt
	deleteStmt      *sql.Stmt
	deleteAgentStmt *sql.Stmt
	listStmt        *sql.Stmt
	countStmt       *sql.Stmt
}

// Open creates a durable store at the given path with default settings.
func Open(path string) (*Store, error) {
	return OpenWithConfig(Config{Path: path})
}

// OpenWithConfig creates a durable store with explicit configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("durable store path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create durable store directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open durable store %q: %w", cfg.Path, err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "store.durable"),
	}

	if err := s.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("durable store opened", "path", cfg.Path)
	return s, nil
}

// initialize enables WAL mode, sets the busy timeout, creates the schema,
// and prepares statements.
func (s *Store) initialize(cfg Config) error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return fmt.Errorf("set synchronous mode: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return s.prepareStatements()
}

func (s *Store) prepareStatements() error {
	var err error
	prepare := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = s.db.Prepare(query)
	}

	prepare(&s.getStmt, `SELECT vector FROM rule_vectors WHERE rule_id = ?`)
	prepare(&s.upsertStmt, `
		INSERT INTO rule_vectors (rule_id, layer, family_id, agent_id, vector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rule_id) DO UPDATE SET
			layer = excluded.layer,
			family_id = excluded.family_id,
			agent_id = excluded.agent_id,
			vector = excluded.vector,
			updated_at = excluded.updated_at`)
	prepare(&s.deleteStmt, `DELETE FROM rule_vectors WHERE rule_id = ?`)
	prepare(&s.deleteAgentStmt, `DELETE FROM rule_vectors WHERE agent_id = ?`)
	prepare(&s.listStmt, `SELECT rule_id FROM rule_vectors ORDER BY rule_id`)
	prepare(&s.countStmt, `SELECT COUNT(*) FROM rule_vectors`)

	if err != nil {
		return fmt.Errorf("prepare statements: %w", err)
	}
	return nil
}

// Get returns the vector for a rule id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*vector.RuleVector, error) {
	var blob []byte
	err := s.getStmt.QueryRowContext(ctx, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("durable get %q: %w", id, err)
	}

	rv, err := vector.DecodeRuleVector(blob)
	if err != nil {
		return nil, fmt.Errorf("durable record %q: %w", id, err)
	}
	return rv, nil
}

// Upsert writes or replaces the vector for a rule id along with its
// indexed metadata.
func (s *Store) Upsert(ctx context.Context, id string, meta Metadata, rv *vector.RuleVector) error {
	blob, err := vector.EncodeRuleVector(rv)
	if err != nil {
		return fmt.Errorf("durable upsert %q: %w", id, err)
	}
	_, err = s.upsertStmt.ExecContext(ctx, id, meta.Layer, meta.FamilyID, meta.AgentID, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("durable upsert %q: %w", id, err)
	}
	return nil
}

// Remove deletes the row for a rule id. Removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("durable remove %q: %w", id, err)
	}
	return nil
}

// RemoveByAgent deletes every row owned by the agent and returns the
// number of rows removed.
func (s *Store) RemoveByAgent(ctx context.Context, agentID string) (int64, error) {
	res, err := s.deleteAgentStmt.ExecContext(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("durable remove agent %q: %w", agentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("durable remove agent %q: %w", agentID, err)
	}
	return n, nil
}

// ListIDs returns every stored rule id in ascending order.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("durable list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("durable list: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("durable list: %w", err)
	}
	return ids, nil
}

// Count returns the number of stored vectors.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.countStmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("durable count: %w", err)
	}
	return n, nil
}

// Close releases prepared statements and the database handle.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.getStmt, s.upsertStmt, s.deleteStmt, s.deleteAgentStmt, s.listStmt, s.countStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
