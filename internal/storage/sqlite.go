package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a Store backed by a single SQLite database file.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// Unlike the Dir backend, SQLite persists content type and metadata.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite-backed store at the given path.
// Applies required pragmas and the schema automatically; safe to call
// multiple times against the same file.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("open database: %w", err)}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("connect to database: %w", err)}
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("execute %q: %w", pragma, err)}
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("apply schema: %w", err)}
	}

	return &SQLite{db: db}, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) (Object, error) {
	var (
		content, contentType, metaJSON, modified string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT content, content_type, metadata, last_modified
		FROM objects WHERE key = ?
	`, key).Scan(&content, &contentType, &metaJSON, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return Object{}, NewNotFoundError(key)
	}
	if err != nil {
		return Object{}, &Error{Code: CodeConnection, Key: key, Err: err}
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
		return Object{}, &Error{Code: CodeIntegrity, Key: key, Err: fmt.Errorf("decode metadata: %w", err)}
	}
	lastModified, err := time.Parse(time.RFC3339Nano, modified)
	if err != nil {
		return Object{}, &Error{Code: CodeIntegrity, Key: key, Err: fmt.Errorf("decode last_modified: %w", err)}
	}

	return Object{
		Key:          key,
		Content:      content,
		ContentType:  contentType,
		Size:         int64(len(content)),
		LastModified: lastModified,
		Metadata:     metadata,
	}, nil
}

// Put implements Store. Existing keys are overwritten via upsert.
func (s *SQLite) Put(ctx context.Context, key, content, contentType string, metadata map[string]string) error {
	if contentType == "" {
		contentType = "text/plain"
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return &Error{Code: CodeIntegrity, Key: key, Err: fmt.Errorf("encode metadata: %w", err)}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (key, content, content_type, metadata, last_modified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			metadata = excluded.metadata,
			last_modified = excluded.last_modified
	`, key, content, contentType, string(metaJSON), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, length(content), last_modified
		FROM objects
		WHERE key LIKE ? ESCAPE '\'
		ORDER BY key ASC
	`, pattern)
	if err != nil {
		return nil, &Error{Code: CodeConnection, Err: err}
	}
	defer rows.Close()

	var infos []ObjectInfo
	for rows.Next() {
		var (
			key      string
			size     int64
			modified string
		)
		if err := rows.Scan(&key, &size, &modified); err != nil {
			return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("scan object row: %w", err)}
		}
		lastModified, err := time.Parse(time.RFC3339Nano, modified)
		if err != nil {
			return nil, &Error{Code: CodeIntegrity, Key: key, Err: fmt.Errorf("decode last_modified: %w", err)}
		}
		infos = append(infos, ObjectInfo{Key: key, Size: size, LastModified: lastModified})
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Code: CodeConnection, Err: fmt.Errorf("iterate objects: %w", err)}
	}
	return infos, nil
}

// Delete implements Store. Missing keys are ignored.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, key); err != nil {
		return &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return nil
}

// Exists implements Store.
func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &Error{Code: CodeConnection, Key: key, Err: err}
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// escapeLike escapes LIKE metacharacters so a prefix matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
