// SPDX-License-Identifier: AGPL-3.0-or-later

// Package blog turns selected commits into markdown dev-blog entries and
// keeps track of the generated files.
package blog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Timestamp layout used in entry frontmatter and entry IDs.
const (
	frontmatterTimeLayout = "2006-01-02 15:04:05"
	entryIDTimeLayout     = "20060102_150405"
)

// Entry is a generated blog entry tracked in the index.
type Entry struct {
	Path        string    `json:"filepath"`
	Repository  string    `json:"repository"`
	CommitCount int       `json:"commit_count"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
}

// ID derives the stable index key: generation timestamp plus the repository
// with slashes flattened.
func (e *Entry) ID() string {
	return e.GeneratedAt.Format(entryIDTimeLayout) + "_" + strings.ReplaceAll(e.Repository, "/", "_")
}

// DefaultTitle builds the title used when the frontmatter carries none.
func DefaultTitle(repository string) string {
	name := repository
	if i := strings.LastIndex(repository, "/"); i >= 0 {
		name = repository[i+1:]
	}
	return "Development Update - " + name
}

// frontmatter mirrors the YAML block at the top of a generated entry file.
type frontmatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Repository  string   `yaml:"repository"`
	CommitCount int      `yaml:"commit_count"`
	GeneratedBy string   `yaml:"generated_by"`
	GeneratedAt string   `yaml:"generated_at"`
	Tags        []string `yaml:"tags,omitempty"`
}

// splitFrontmatter separates the leading YAML block from the body. The block
// is delimited by "---" lines; content without one yields an empty block.
func splitFrontmatter(content string) (block, body string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return "", content
	}
	return rest[:end], strings.TrimPrefix(rest[end+len("\n---\n"):], "\n")
}

// EntryFromFile reads an entry file and reconstructs its index record from
// the frontmatter. Used when rebuilding the index from disk.
func EntryFromFile(path string) (*Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entry file: %w", err)
	}

	block, _ := splitFrontmatter(string(raw))
	if block == "" {
		return nil, fmt.Errorf("entry %s has no frontmatter", filepath.Base(path))
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, fmt.Errorf("parsing frontmatter of %s: %w", filepath.Base(path), err)
	}

	provider, model := splitGeneratedBy(fm.GeneratedBy)

	generatedAt, err := time.ParseInLocation(frontmatterTimeLayout, fm.GeneratedAt, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parsing generated_at of %s: %w", filepath.Base(path), err)
	}

	entry := &Entry{
		Path:        path,
		Repository:  fm.Repository,
		CommitCount: fm.CommitCount,
		Provider:    provider,
		Model:       model,
		GeneratedAt: generatedAt,
		Title:       fm.Title,
		Tags:        fm.Tags,
	}
	if entry.Title == "" {
		entry.Title = DefaultTitle(entry.Repository)
	}
	return entry, nil
}

// splitGeneratedBy parses a "provider (model)" frontmatter value.
func splitGeneratedBy(s string) (provider, model string) {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, ""
	}
	return strings.TrimSpace(s[:open]), s[open+1 : len(s)-1]
}
