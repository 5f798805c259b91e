// SPDX-License-Identifier: AGPL-3.0-or-later
package blog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bartekus/devblogger/internal/fsutil"
)

// IndexFile is the per-directory entry index, hidden next to the entries.
const IndexFile = ".blog_index.json"

// Store keeps the blog entry index for one entries directory. The index is
// rewritten atomically after every mutation.
type Store struct {
	dir       string
	indexPath string
	entries   map[string]*Entry
	log       zerolog.Logger
}

// OpenStore loads (or initializes) the index under dir.
func OpenStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating entries directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		indexPath: filepath.Join(dir, IndexFile),
		entries:   map[string]*Entry{},
		log:       log,
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the entries directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading blog index: %w", err)
	}

	var index map[string]*Entry
	if err := json.Unmarshal(raw, &index); err != nil {
		return fmt.Errorf("parsing blog index: %w", err)
	}
	s.entries = index
	if s.entries == nil {
		s.entries = map[string]*Entry{}
	}
	return nil
}

func (s *Store) saveIndex() error {
	raw, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding blog index: %w", err)
	}
	if err := fsutil.AtomicWrite(s.indexPath, raw); err != nil {
		return fmt.Errorf("writing blog index: %w", err)
	}
	return nil
}

// Add records an entry and returns its ID. Re-adding an existing ID updates
// the file path, title, and tags in place.
func (s *Store) Add(entry *Entry) (string, error) {
	id := entry.ID()

	if existing, ok := s.entries[id]; ok {
		existing.Path = entry.Path
		existing.Title = entry.Title
		existing.Tags = entry.Tags
	} else {
		s.entries[id] = entry
	}

	if err := s.saveIndex(); err != nil {
		return "", err
	}
	s.log.Info().Str("entry", id).Msg("added blog entry")
	return id, nil
}

// Get returns an entry by ID, or nil.
func (s *Store) Get(id string) *Entry {
	return s.entries[id]
}

// All returns every entry, newest first.
func (s *Store) All() []*Entry {
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out
}

// ByRepository returns entries for one repository, newest first.
func (s *Store) ByRepository(repository string) []*Entry {
	return s.filter(func(e *Entry) bool { return e.Repository == repository })
}

// ByProvider returns entries generated by one provider, newest first.
func (s *Store) ByProvider(provider string) []*Entry {
	return s.filter(func(e *Entry) bool { return e.Provider == provider })
}

// ByDateRange returns entries generated within [start, end], newest first.
func (s *Store) ByDateRange(start, end time.Time) []*Entry {
	return s.filter(func(e *Entry) bool {
		return !e.GeneratedAt.Before(start) && !e.GeneratedAt.After(end)
	})
}

// Search matches the query case-insensitively against title, repository,
// and tags.
func (s *Store) Search(query string) []*Entry {
	q := strings.ToLower(query)
	return s.filter(func(e *Entry) bool {
		if strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.Repository), q) {
			return true
		}
		for _, tag := range e.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
}

func (s *Store) filter(keep func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range s.All() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Update applies fn to the entry and persists the index.
func (s *Store) Update(id string, fn func(*Entry)) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("blog entry %q not found", id)
	}
	fn(entry)
	return s.saveIndex()
}

// Delete removes the entry from the index and deletes its file.
func (s *Store) Delete(id string) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("blog entry %q not found", id)
	}

	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting entry file: %w", err)
	}

	delete(s.entries, id)
	if err := s.saveIndex(); err != nil {
		return err
	}
	s.log.Info().Str("entry", id).Msg("deleted blog entry")
	return nil
}

// StorageStats summarizes the index and the bytes on disk.
type StorageStats struct {
	TotalEntries int            `json:"total_entries"`
	TotalBytes   int64          `json:"total_size_bytes"`
	Repositories map[string]int `json:"repositories"`
	Providers    map[string]int `json:"providers"`
	Path         string         `json:"storage_path"`
}

// Stats counts entries per repository and provider and sums file sizes.
func (s *Store) Stats() StorageStats {
	stats := StorageStats{
		TotalEntries: len(s.entries),
		Repositories: map[string]int{},
		Providers:    map[string]int{},
		Path:         s.dir,
	}
	for _, e := range s.entries {
		if fi, err := os.Stat(e.Path); err == nil {
			stats.TotalBytes += fi.Size()
		}
		stats.Repositories[e.Repository]++
		stats.Providers[e.Provider]++
	}
	return stats
}

// Export writes all entries into dir as either "json" (index dump with an
// export header) or "markdown" (one combined document, newest first).
// Returns the path of the written file.
func (s *Store) Export(dir, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return s.exportJSON(dir)
	case "markdown":
		return s.exportMarkdown(dir)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

func (s *Store) exportJSON(dir string) (string, error) {
	payload := struct {
		ExportedAt   time.Time         `json:"exported_at"`
		TotalEntries int               `json:"total_entries"`
		Entries      map[string]*Entry `json:"entries"`
	}{
		ExportedAt:   time.Now(),
		TotalEntries: len(s.entries),
		Entries:      s.entries,
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}

	path := filepath.Join(dir, "blog_entries_export.json")
	if err := fsutil.AtomicWrite(path, raw); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}

func (s *Store) exportMarkdown(dir string) (string, error) {
	var b strings.Builder

	b.WriteString("# DevBlogger Export\n\n")
	fmt.Fprintf(&b, "Exported on: %s\n", time.Now().Format(frontmatterTimeLayout))
	fmt.Fprintf(&b, "Total entries: %d\n\n---\n\n", len(s.entries))

	for _, e := range s.All() {
		fmt.Fprintf(&b, "# %s\n\n", e.Title)
		fmt.Fprintf(&b, "**Repository:** %s\n", e.Repository)
		fmt.Fprintf(&b, "**Generated:** %s\n", e.GeneratedAt.Format(frontmatterTimeLayout))
		fmt.Fprintf(&b, "**Provider:** %s (%s)\n", e.Provider, e.Model)
		fmt.Fprintf(&b, "**Commits:** %d\n", e.CommitCount)
		if len(e.Tags) > 0 {
			fmt.Fprintf(&b, "**Tags:** %s\n", strings.Join(e.Tags, ", "))
		}
		b.WriteString("\n")

		raw, err := os.ReadFile(e.Path)
		if err != nil {
			b.WriteString("*Content file not found*\n")
		} else {
			_, body := splitFrontmatter(string(raw))
			b.WriteString(body)
		}
		b.WriteString("\n\n---\n\n")
	}

	path := filepath.Join(dir, "blog_entries_export.md")
	if err := fsutil.AtomicWrite(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}

// CleanupOlderThan deletes entries generated more than the given number of
// days ago, returning how many were removed.
func (s *Store) CleanupOlderThan(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var stale []string
	for id, e := range s.entries {
		if e.GeneratedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}

	deleted := 0
	for _, id := range stale {
		if err := s.Delete(id); err != nil {
			s.log.Warn().Err(err).Str("entry", id).Msg("cleanup delete failed")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// ValidationReport lists index/filesystem mismatches.
type ValidationReport struct {
	MissingFiles  []string `json:"missing_files"`
	OrphanedFiles []string `json:"orphaned_files"`
}

// TotalIssues counts problems in the report.
func (r ValidationReport) TotalIssues() int {
	return len(r.MissingFiles) + len(r.OrphanedFiles)
}

// Validate cross-checks the index against the entries directory: indexed
// entries whose file is gone, and markdown files the index does not know.
func (s *Store) Validate() (ValidationReport, error) {
	var report ValidationReport

	indexed := map[string]bool{}
	for id, e := range s.entries {
		indexed[e.Path] = true
		if _, err := os.Stat(e.Path); os.IsNotExist(err) {
			report.MissingFiles = append(report.MissingFiles, id)
		}
	}
	sort.Strings(report.MissingFiles)

	files, err := filepath.Glob(filepath.Join(s.dir, "*.md"))
	if err != nil {
		return report, fmt.Errorf("scanning entries directory: %w", err)
	}
	for _, f := range files {
		if !indexed[f] {
			report.OrphanedFiles = append(report.OrphanedFiles, f)
		}
	}
	sort.Strings(report.OrphanedFiles)

	return report, nil
}

// RepairResult summarizes what Repair changed.
type RepairResult struct {
	ReindexedFiles int
	DroppedEntries int
	Errors         []string
}

// Repair reconciles the index with the directory: orphaned files with valid
// frontmatter are re-indexed, index records whose file is gone are dropped.
func (s *Store) Repair() (RepairResult, error) {
	var result RepairResult

	report, err := s.Validate()
	if err != nil {
		return result, err
	}

	for _, path := range report.OrphanedFiles {
		entry, err := EntryFromFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		s.entries[entry.ID()] = entry
		result.ReindexedFiles++
	}

	for _, id := range report.MissingFiles {
		delete(s.entries, id)
		result.DroppedEntries++
	}

	if result.ReindexedFiles > 0 || result.DroppedEntries > 0 {
		if err := s.saveIndex(); err != nil {
			return result, err
		}
	}
	return result, nil
}
