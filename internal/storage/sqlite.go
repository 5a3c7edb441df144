package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/chaincore/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on eav.value for reverse link lookups
const currentSchemaVersion = 1

// SQLiteStore is a SQLite database holding both CAS namespaces and the
// EAV table. Uses WAL mode for concurrent reads.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a database at path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Safe to call repeatedly on the same path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CAS returns a ContentAddressableStorage view over namespace.
func (s *SQLiteStore) CAS(namespace string) *SQLiteCAS {
	return &SQLiteCAS{db: s.db, namespace: namespace}
}

// EAV returns the EntityAttributeValueStorage view.
func (s *SQLiteStore) EAV() *SQLiteEAV {
	return &SQLiteEAV{db: s.db}
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_eav_value ON eav(value)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, expected) {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// SQLiteCAS is one namespace of the content table.
type SQLiteCAS struct {
	db        *sql.DB
	namespace string
}

// Add implements ContentAddressableStorage.
// Uses ON CONFLICT DO NOTHING since content never changes under an address.
func (c *SQLiteCAS) Add(ctx context.Context, content ir.Content) error {
	data := content.Data
	if data == nil {
		data = []byte{}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO content (namespace, address, content_type, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, address) DO NOTHING
	`, c.namespace, string(content.Address), content.Type, data)
	if err != nil {
		return fmt.Errorf("add content %s: %w", content.Address.Short(), err)
	}
	return nil
}

// Fetch implements ContentAddressableStorage.
func (c *SQLiteCAS) Fetch(ctx context.Context, addr ir.Address) (ir.Content, bool, error) {
	out := ir.Content{Address: addr}
	err := c.db.QueryRowContext(ctx, `
		SELECT content_type, data FROM content
		WHERE namespace = ? AND address = ?
	`, c.namespace, string(addr)).Scan(&out.Type, &out.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Content{}, false, nil
	}
	if err != nil {
		return ir.Content{}, false, fmt.Errorf("fetch content %s: %w", addr.Short(), err)
	}
	return out, true, nil
}

// Contains implements ContentAddressableStorage.
func (c *SQLiteCAS) Contains(ctx context.Context, addr ir.Address) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM content WHERE namespace = ? AND address = ?
	`, c.namespace, string(addr)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("contains %s: %w", addr.Short(), err)
	}
	return n > 0, nil
}

// SQLiteEAV is the eav table.
type SQLiteEAV struct {
	db *sql.DB
}

// AddEAVI implements EntityAttributeValueStorage.
func (s *SQLiteEAV) AddEAVI(ctx context.Context, e EAVI) (EAVI, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eav (entity, attribute, value) VALUES (?, ?, ?)
		ON CONFLICT(entity, attribute, value) DO NOTHING
	`, string(e.Entity), e.Attribute, string(e.Value))
	if err != nil {
		return EAVI{}, fmt.Errorf("add eavi: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT idx FROM eav WHERE entity = ? AND attribute = ? AND value = ?
	`, string(e.Entity), e.Attribute, string(e.Value)).Scan(&e.Index)
	if err != nil {
		return EAVI{}, fmt.Errorf("read eavi index: %w", err)
	}
	return e, nil
}

// FetchEAVI implements EntityAttributeValueStorage.
func (s *SQLiteEAV) FetchEAVI(ctx context.Context, q EAVIQuery) ([]EAVI, error) {
	var (
		where []string
		args  []any
	)
	if q.Entity != "" {
		where = append(where, "entity = ?")
		args = append(args, string(q.Entity))
	}
	if q.Attribute != "" {
		where = append(where, "attribute = ?")
		args = append(args, q.Attribute)
	}
	if q.Value != "" {
		where = append(where, "value = ?")
		args = append(args, string(q.Value))
	}

	query := "SELECT idx, entity, attribute, value FROM eav"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY idx ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch eavi: %w", err)
	}
	defer rows.Close()

	var out []EAVI
	for rows.Next() {
		var (
			e             EAVI
			entity, value string
		)
		if err := rows.Scan(&e.Index, &entity, &e.Attribute, &value); err != nil {
			return nil, fmt.Errorf("scan eavi: %w", err)
		}
		e.Entity = ir.Address(entity)
		e.Value = ir.Address(value)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eavi: %w", err)
	}
	return out, nil
}
