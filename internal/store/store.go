// Package store persists models, their training configuration and uploaded
// data files in SQLite, and keeps each compiled model spec as a JSON
// artifact on disk.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNameTaken   = errors.New("model name already used")
	ErrInvalidName = errors.New("invalid model name")
	ErrInvalidFile = errors.New("invalid data file")
)

// MaxNameLength bounds model names.
const MaxNameLength = 50

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SanitizeName trims name and checks it is safe to use as a file name.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength || !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q. Only alphanumeric, hyphens, and underscores are allowed", ErrInvalidName, name)
	}
	return name, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS models (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL UNIQUE,
	graph_json     TEXT NOT NULL,
	problem_type   INTEGER,
	file_id        TEXT,
	target_field   TEXT,
	training_split REAL,
	optimizer      TEXT,
	metric         TEXT,
	epochs         INTEGER,
	batch_size     INTEGER,
	loss           TEXT,
	created_on     DATETIME NOT NULL,
	updated_on     DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS data_files (
	id         TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	file_type  TEXT NOT NULL,
	image_size INTEGER,
	batch_size INTEGER,
	color_mode TEXT,
	label_mode TEXT,
	created_on DATETIME NOT NULL
);
`

// Options locates the database and the directories the store manages.
type Options struct {
	// DSN is the SQLite data source, a file path or ":memory:".
	DSN string
	// ArtifactDir receives one <name>.json spec per model.
	ArtifactDir string
	// DataDir holds uploaded data files.
	DataDir string
}

// Store is safe for concurrent use.
type Store struct {
	db        *sql.DB
	artifacts string
	data      string
}

// Open opens the database, creates missing tables and directories.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := ctxlog.FromContext(ctx)
	for _, dir := range []string{opts.ArtifactDir, opts.DataDir} {
		if dir == "" {
			return nil, errors.New("store: artifact and data directories are required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", opts.DSN, err)
	}
	if opts.DSN == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}
	logger.Debug("Store: Database ready.", "dsn", opts.DSN, "artifacts", opts.ArtifactDir, "data", opts.DataDir)
	return &Store{db: db, artifacts: opts.ArtifactDir, data: opts.DataDir}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the directory uploaded files live in.
func (s *Store) DataDir() string { return s.data }

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
