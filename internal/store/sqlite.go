package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tv7/C-Claw/internal/model"
	"github.com/tv7/C-Claw/internal/salience"
)

const defaultLimit = 20

// timeLayout is fixed-width UTC so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const memoryColumns = `m.id, m.owner, m.content, m.sector, m.salience, m.created_at, m.accessed_at, m.topic_key`

// returningColumns matches memoryColumns for RETURNING clauses, which cannot use an alias.
const returningColumns = `id, owner, content, sector, salience, created_at, accessed_at, topic_key`

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces time.Now, mainly so tests can simulate days passing.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithLogger sets the logger used for storage diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLiteStore) { s.logger = logger }
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer connection avoids SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:      db,
		now:     time.Now,
		logger:  zap.NewNop(),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		owner       TEXT NOT NULL,
		content     TEXT NOT NULL CHECK (length(content) > 0),
		sector      TEXT NOT NULL CHECK (sector IN ('semantic', 'episodic')),
		salience    REAL NOT NULL DEFAULT 1.0 CHECK (salience >= 0.0 AND salience <= 5.0),
		created_at  TEXT NOT NULL,
		accessed_at TEXT NOT NULL,
		topic_key   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_accessed ON memories(owner, accessed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_salience ON memories(owner, salience DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_accessed ON memories(accessed_at);
	CREATE INDEX IF NOT EXISTS idx_memories_salience ON memories(salience);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		content,
		tokenize='unicode61 remove_diacritics 2'
	);

	CREATE TABLE IF NOT EXISTS sweeps (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		decayed     INTEGER NOT NULL,
		pruned      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sweeps_started ON sweeps(started_at DESC);

	CREATE TABLE IF NOT EXISTS owner_settings (
		owner      TEXT PRIMARY KEY,
		voice_mode INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Rows written by an older build may be missing from the index.
	_, err := s.db.Exec(`INSERT INTO memories_fts(rowid, content)
		SELECT id, content FROM memories WHERE id NOT IN (SELECT rowid FROM memories_fts)`)
	return err
}

func validateInsert(p InsertParams) error {
	if strings.TrimSpace(p.Owner) == "" {
		return validationError("owner is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return validationError("content is empty", goerr.V("owner", p.Owner))
	}
	if n := utf8.RuneCountInString(p.Content); n > model.MaxContentLength {
		return validationError("content too long",
			goerr.V("owner", p.Owner), goerr.V("length", n), goerr.V("max", model.MaxContentLength))
	}
	if !model.ValidSectors[p.Sector] {
		return validationError("unknown sector", goerr.V("owner", p.Owner), goerr.V("sector", p.Sector))
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, p InsertParams) (*model.Memory, error) {
	if err := validateInsert(p); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	mem := &model.Memory{
		Owner:      p.Owner,
		Content:    p.Content,
		Sector:     p.Sector,
		Salience:   salience.Initial,
		CreatedAt:  now,
		AccessedAt: now,
		TopicKey:   p.TopicKey,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError(err, "begin insert", goerr.V("owner", p.Owner))
	}
	defer tx.Rollback()

	id, err := insertTx(ctx, tx, mem)
	if err != nil {
		return nil, storageError(err, "insert memory", goerr.V("owner", p.Owner))
	}
	if err := tx.Commit(); err != nil {
		return nil, storageError(err, "commit insert", goerr.V("owner", p.Owner))
	}

	mem.ID = id
	return mem, nil
}

// insertTx writes the row and its search-index entry inside tx.
func insertTx(ctx context.Context, tx *sql.Tx, m *model.Memory) (int64, error) {
	var topicKey *string
	if m.TopicKey != "" {
		topicKey = &m.TopicKey
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO memories (owner, content, sector, salience, created_at, accessed_at, topic_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Owner, m.Content, string(m.Sector), m.Salience,
		formatTime(m.CreatedAt), formatTime(m.AccessedAt), topicKey)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories_fts (rowid, content) VALUES (?, ?)`, id, m.Content); err != nil {
		return 0, fmt.Errorf("index memory: %w", err)
	}
	return id, nil
}

// Get retrieves one memory by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories m WHERE m.id = ? AND m.salience >= ?`,
		id, salience.Floor)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "get memory", goerr.V("id", id))
	}
	if err != nil {
		return nil, storageError(err, "get memory", goerr.V("id", id))
	}
	return &m, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, owner string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	memories, err := s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories m
		 WHERE m.owner = ? AND m.salience >= ?
		 ORDER BY m.accessed_at DESC, m.id DESC
		 LIMIT ?`, owner, salience.Floor, limit)
	if err != nil {
		return nil, storageError(err, "recent memories", goerr.V("owner", owner))
	}
	return memories, nil
}

func (s *SQLiteStore) ForOwner(ctx context.Context, owner string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	memories, err := s.queryMemories(ctx,
		`SELECT `+memoryColumns+` FROM memories m
		 WHERE m.owner = ? AND m.salience >= ?
		 ORDER BY m.salience DESC, m.accessed_at DESC, m.id DESC
		 LIMIT ?`, owner, salience.Floor, limit)
	if err != nil {
		return nil, storageError(err, "list memories", goerr.V("owner", owner))
	}
	return memories, nil
}

// Reinforce applies salience.Reinforce and touches accessed_at in one
// statement, returning the updated memory. A memory that no longer exists
// yields ErrNotFound.
func (s *SQLiteStore) Reinforce(ctx context.Context, id int64) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE memories SET salience = MIN(salience + ?, ?), accessed_at = ?
		 WHERE id = ? AND salience >= ?
		 RETURNING `+returningColumns,
		salience.ReinforceDelta, salience.Max, formatTime(s.now()), id, salience.Floor)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "reinforce memory", goerr.V("id", id))
	}
	if err != nil {
		return nil, storageError(err, "reinforce memory", goerr.V("id", id))
	}
	return &m, nil
}

func (s *SQLiteStore) ClearOwner(ctx context.Context, owner string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageError(err, "begin clear", goerr.V("owner", owner))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memories_fts WHERE rowid IN (SELECT id FROM memories WHERE owner = ?)`, owner); err != nil {
		return 0, storageError(err, "unindex owner memories", goerr.V("owner", owner))
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE owner = ?`, owner)
	if err != nil {
		return 0, storageError(err, "delete owner memories", goerr.V("owner", owner))
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, storageError(err, "commit clear", goerr.V("owner", owner))
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryMemories(ctx context.Context, query string, args ...interface{}) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memories := []model.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var sector, createdAt, accessedAt string
	var topicKey sql.NullString

	err := row.Scan(&m.ID, &m.Owner, &m.Content, &sector, &m.Salience, &createdAt, &accessedAt, &topicKey)
	if err != nil {
		return m, err
	}

	m.Sector = model.Sector(sector)
	m.CreatedAt = parseTime(createdAt)
	m.AccessedAt = parseTime(accessedAt)
	if topicKey.Valid {
		m.TopicKey = topicKey.String
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Imported rows may carry plain RFC3339.
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}
