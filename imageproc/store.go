package imageproc

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// manifestStore records which processed files exist and the operation that
// produced each, so Prune can reason about outputs from previous runs.
type manifestStore struct {
	db *sql.DB
}

// newManifestStore opens (or creates) the SQLite manifest at path, ensures
// the data directory exists, and runs schema migrations.
func newManifestStore(path string) (*manifestStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL with a busy timeout so a manifest shared with a build pipeline
	// waits instead of returning SQLITE_BUSY; synchronous=NORMAL is safe
	// with WAL and avoids an fsync per transaction.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	s := &manifestStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *manifestStore) Close() error {
	return s.db.Close()
}

func (s *manifestStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS processed_images (
    file TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    op TEXT NOT NULL,
    inserted_at TEXT NOT NULL
);
`)
	return err
}

// SaveEntry upserts one processed file with its logical source and a
// human-readable operation description.
func (s *manifestStore) SaveEntry(file, source, op string) error {
	_, err := s.db.Exec(`
INSERT INTO processed_images (file, source, op, inserted_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(file) DO UPDATE SET source = excluded.source, op = excluded.op, inserted_at = excluded.inserted_at
`, file, source, op, time.Now().UTC().Format(time.RFC3339))
	return err
}

// DeleteEntry removes one processed file's record.
func (s *manifestStore) DeleteEntry(file string) error {
	_, err := s.db.Exec(`DELETE FROM processed_images WHERE file = ?`, file)
	return err
}

// ListFiles returns every recorded output filename, ordered for stable
// iteration.
func (s *manifestStore) ListFiles() ([]string, error) {
	rows, err := s.db.Query(`SELECT file FROM processed_images ORDER BY file`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
