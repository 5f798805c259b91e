// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger tracks which commits have already been turned into blog
// entries, so the same commit is never processed twice.
//
// The ledger is a local SQLite database with three tables: processed_commits
// (the dedupe record), commit_metadata (cached commit details) and
// app_settings (small key/value state).
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ProcessType distinguishes what a commit was processed for.
const (
	ProcessTypeBlog = "blog"
	ProcessTypeBoth = "both"
	// ProcessTypeAny matches any process type in queries.
	ProcessTypeAny = "any"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_commits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_name TEXT NOT NULL,
	commit_sha TEXT NOT NULL,
	process_type TEXT DEFAULT 'both',
	processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	blog_entry_path TEXT,
	ai_provider TEXT,
	prompt_used TEXT,
	UNIQUE(repo_name, commit_sha, process_type)
);

CREATE TABLE IF NOT EXISTS commit_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_name TEXT NOT NULL,
	commit_sha TEXT NOT NULL,
	author_name TEXT,
	author_email TEXT,
	commit_date TIMESTAMP,
	message TEXT,
	file_changes TEXT,
	raw_data TEXT,
	UNIQUE(repo_name, commit_sha)
);

CREATE TABLE IF NOT EXISTS app_settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_processed_commits_repo ON processed_commits(repo_name);
CREATE INDEX IF NOT EXISTS idx_processed_commits_time ON processed_commits(processed_at);
CREATE INDEX IF NOT EXISTS idx_commit_metadata_repo ON commit_metadata(repo_name);
`

// ProcessedCommit is one row of the dedupe record.
type ProcessedCommit struct {
	ID            int64
	RepoName      string
	CommitSHA     string
	ProcessType   string
	ProcessedAt   time.Time
	BlogEntryPath string
	AIProvider    string
	PromptUsed    string
}

// CommitMetadata caches the interesting parts of a commit for reporting.
type CommitMetadata struct {
	RepoName    string
	CommitSHA   string
	AuthorName  string
	AuthorEmail string
	CommitDate  time.Time
	Message     string
	FileChanges []map[string]any
}

// MarkOptions carries the optional columns of a processed-commit record.
type MarkOptions struct {
	ProcessType   string
	BlogEntryPath string
	AIProvider    string
	PromptUsed    string
}

// Store is the SQLite-backed ledger.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsProcessed reports whether a commit has a processed record. processType
// ProcessTypeAny matches any record for the commit.
func (s *Store) IsProcessed(repo, sha, processType string) (bool, error) {
	var (
		row *sql.Row
	)
	if processType == ProcessTypeAny || processType == "" {
		row = s.db.QueryRow(
			"SELECT id FROM processed_commits WHERE repo_name = ? AND commit_sha = ?",
			repo, sha)
	} else {
		row = s.db.QueryRow(
			"SELECT id FROM processed_commits WHERE repo_name = ? AND commit_sha = ? AND process_type = ?",
			repo, sha, processType)
	}

	var id int64
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking processed commit: %w", err)
	}
	return true, nil
}

// MarkProcessed records a commit as processed, replacing any previous record
// with the same (repo, sha, process type) key.
func (s *Store) MarkProcessed(repo, sha string, opts MarkOptions) error {
	processType := opts.ProcessType
	if processType == "" {
		processType = ProcessTypeBoth
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO processed_commits
		(repo_name, commit_sha, process_type, blog_entry_path, ai_provider, prompt_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		repo, sha, processType, opts.BlogEntryPath, opts.AIProvider, opts.PromptUsed)
	if err != nil {
		return fmt.Errorf("marking commit processed: %w", err)
	}

	s.log.Debug().Str("repo", repo).Str("sha", sha).Msg("marked commit processed")
	return nil
}

// MarkUnprocessed removes processed records for a commit. processType
// ProcessTypeBoth (or empty) removes all records for the commit.
func (s *Store) MarkUnprocessed(repo, sha, processType string) error {
	var err error
	if processType == "" || processType == ProcessTypeBoth {
		_, err = s.db.Exec(
			"DELETE FROM processed_commits WHERE repo_name = ? AND commit_sha = ?",
			repo, sha)
	} else {
		_, err = s.db.Exec(
			"DELETE FROM processed_commits WHERE repo_name = ? AND commit_sha = ? AND process_type = ?",
			repo, sha, processType)
	}
	if err != nil {
		return fmt.Errorf("marking commit unprocessed: %w", err)
	}
	return nil
}

// StoreCommitMetadata caches commit details, replacing any existing row.
func (s *Store) StoreCommitMetadata(meta CommitMetadata) error {
	fileChanges, err := json.Marshal(meta.FileChanges)
	if err != nil {
		return fmt.Errorf("marshaling file changes: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO commit_metadata
		(repo_name, commit_sha, author_name, author_email, commit_date, message, file_changes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.RepoName, meta.CommitSHA, meta.AuthorName, meta.AuthorEmail,
		meta.CommitDate.Format(time.RFC3339), meta.Message, string(fileChanges))
	if err != nil {
		return fmt.Errorf("storing commit metadata: %w", err)
	}
	return nil
}

// Metadata returns cached commit details, or nil when none are stored.
func (s *Store) Metadata(repo, sha string) (*CommitMetadata, error) {
	row := s.db.QueryRow(`
		SELECT author_name, author_email, commit_date, message, file_changes
		FROM commit_metadata WHERE repo_name = ? AND commit_sha = ?`,
		repo, sha)

	var (
		meta        CommitMetadata
		commitDate  sql.NullString
		fileChanges sql.NullString
	)
	meta.RepoName = repo
	meta.CommitSHA = sha

	err := row.Scan(&meta.AuthorName, &meta.AuthorEmail, &commitDate, &meta.Message, &fileChanges)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading commit metadata: %w", err)
	}

	if commitDate.Valid {
		if t, err := time.Parse(time.RFC3339, commitDate.String); err == nil {
			meta.CommitDate = t
		}
	}
	if fileChanges.Valid && fileChanges.String != "" {
		if err := json.Unmarshal([]byte(fileChanges.String), &meta.FileChanges); err != nil {
			s.log.Warn().Err(err).Str("sha", sha).Msg("unreadable file changes in metadata")
		}
	}
	return &meta, nil
}

// ProcessedCommits lists processed records, newest first. repo filters by
// repository when non-empty; limit and offset of 0 are ignored.
func (s *Store) ProcessedCommits(repo string, limit, offset int) ([]ProcessedCommit, error) {
	query := `SELECT id, repo_name, commit_sha, process_type, processed_at,
		COALESCE(blog_entry_path, ''), COALESCE(ai_provider, ''), COALESCE(prompt_used, '')
		FROM processed_commits`
	args := []any{}

	if repo != "" {
		query += " WHERE repo_name = ?"
		args = append(args, repo)
	}
	query += " ORDER BY processed_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	} else if offset > 0 {
		// SQLite rejects OFFSET without LIMIT; -1 means unlimited.
		query += " LIMIT -1"
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing processed commits: %w", err)
	}
	defer rows.Close()

	var out []ProcessedCommit
	for rows.Next() {
		var (
			pc          ProcessedCommit
			processedAt string
		)
		if err := rows.Scan(&pc.ID, &pc.RepoName, &pc.CommitSHA, &pc.ProcessType,
			&processedAt, &pc.BlogEntryPath, &pc.AIProvider, &pc.PromptUsed); err != nil {
			return nil, fmt.Errorf("scanning processed commit: %w", err)
		}
		pc.ProcessedAt = parseSQLiteTime(processedAt)
		out = append(out, pc)
	}
	return out, rows.Err()
}

// SetSetting stores a key/value pair in the app_settings table.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO app_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		key, value)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the stored value for key, or def when absent.
func (s *Store) Setting(key, def string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// CleanupOlderThan deletes processed records older than the given number of
// days and returns how many were removed.
func (s *Store) CleanupOlderThan(days int) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM processed_commits WHERE processed_at < datetime('now', '-' || ? || ' days')",
		days)
	if err != nil {
		return 0, fmt.Errorf("cleaning up ledger: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info().Int64("removed", n).Msg("cleaned up old ledger records")
	}
	return n, nil
}

// Stats reports row counts per table and the database size in bytes.
func (s *Store) Stats() (map[string]int64, error) {
	stats := map[string]int64{}
	for _, table := range []string{"processed_commits", "commit_metadata", "app_settings"} {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		stats[table] = n
	}

	var size int64
	err := s.db.QueryRow(
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()").Scan(&size)
	if err != nil {
		return nil, fmt.Errorf("reading database size: %w", err)
	}
	stats["size_bytes"] = size
	return stats, nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuuming ledger: %w", err)
	}
	return nil
}

// parseSQLiteTime handles both the driver's RFC3339 output and SQLite's
// default CURRENT_TIMESTAMP format.
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
