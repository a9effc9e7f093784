package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Delete when the user has no key for the category.
var ErrNotFound = errors.New("credentials: key not found")

// UserKeyStore looks up a key saved by a user. An empty key with a nil error means the
// user has none for the category.
type UserKeyStore interface {
	EffectiveAPIKey(ctx context.Context, userID, category string) (string, error)
}

// StoredKey is one row of a user's key list.
type StoredKey struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const keysSchema = `
CREATE TABLE IF NOT EXISTS user_api_keys (
    user_id TEXT NOT NULL,
    category TEXT NOT NULL,
    api_key TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, category)
)`

// SQLStore keeps per-user keys in SQLite or PostgreSQL.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenSQLStore opens the store for driver "sqlite" (dsn is a file path) or "postgres"
// (dsn is a pgx connection string) and creates the table if needed.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		db       *sql.DB
		err      error
		postgres bool
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		if dsn == "" {
			return nil, fmt.Errorf("credentials: sqlite path cannot be empty")
		}
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("credentials: failed to create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case "postgres", "postgresql", "pgx":
		db, err = sql.Open("pgx", dsn)
		postgres = true
	default:
		return nil, fmt.Errorf("credentials: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("credentials: failed to connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, keysSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("credentials: failed to create schema: %w", err)
	}
	return &SQLStore{db: db, postgres: postgres}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) bind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EffectiveAPIKey implements UserKeyStore.
func (s *SQLStore) EffectiveAPIKey(ctx context.Context, userID, category string) (string, error) {
	if userID == "" {
		return "", nil
	}
	var key string
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT api_key FROM user_api_keys WHERE user_id = ? AND category = ?`),
		userID, normalizeCategory(category)).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// Set stores or replaces the user's key for category.
func (s *SQLStore) Set(ctx context.Context, userID, category, key string) error {
	category = normalizeCategory(category)
	if userID == "" || category == "" || strings.TrimSpace(key) == "" {
		return fmt.Errorf("credentials: user, category and key are required")
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
		INSERT INTO user_api_keys (user_id, category, api_key, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, category) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`),
		userID, category, strings.TrimSpace(key), time.Now().UTC())
	return err
}

// Delete removes the user's key for category.
func (s *SQLStore) Delete(ctx context.Context, userID, category string) error {
	res, err := s.db.ExecContext(ctx,
		s.bind(`DELETE FROM user_api_keys WHERE user_id = ? AND category = ?`),
		userID, normalizeCategory(category))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's stored keys ordered by category. Keys are returned in clear.
func (s *SQLStore) List(ctx context.Context, userID string) ([]StoredKey, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT category, api_key, updated_at FROM user_api_keys WHERE user_id = ? ORDER BY category`),
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredKey
	for rows.Next() {
		var k StoredKey
		if err := rows.Scan(&k.Category, &k.Key, &k.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
