// SPDX-License-Identifier: AGPL-3.0-or-later
package blog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/devblogger/internal/fsutil"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

// writeEntry creates an entry file in the store directory and indexes it.
func writeEntry(t *testing.T, s *Store, repo, provider string, at time.Time) *Entry {
	t.Helper()

	name := at.Format(entryIDTimeLayout) + ".md"
	path := filepath.Join(s.Dir(), name)
	require.NoError(t, fsutil.AtomicWrite(path, []byte("---\ntitle: t\n---\n\nbody\n")))

	entry := &Entry{
		Path:        path,
		Repository:  repo,
		CommitCount: 1,
		Provider:    provider,
		Model:       provider + "-model",
		GeneratedAt: at,
		Title:       DefaultTitle(repo),
	}
	_, err := s.Add(entry)
	require.NoError(t, err)
	return entry
}

func TestStoreAddAndReload(t *testing.T) {
	s := testStore(t)
	e := writeEntry(t, s, "octocat/widgets", "chatgpt", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	// A fresh store over the same directory sees the persisted index.
	reloaded, err := OpenStore(s.Dir(), zerolog.Nop())
	require.NoError(t, err)

	got := reloaded.Get(e.ID())
	require.NotNil(t, got)
	assert.Equal(t, "octocat/widgets", got.Repository)
	assert.Equal(t, "chatgpt", got.Provider)
}

func TestStoreAddUpdatesExisting(t *testing.T) {
	s := testStore(t)
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	first := writeEntry(t, s, "octocat/widgets", "chatgpt", at)

	id, err := s.Add(&Entry{
		Path:        first.Path,
		Repository:  "octocat/widgets",
		GeneratedAt: at,
		Title:       "Renamed",
		Tags:        []string{"release"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID(), id)

	got := s.Get(id)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"release"}, got.Tags)
	assert.Len(t, s.All(), 1)
}

func TestStoreFilters(t *testing.T) {
	s := testStore(t)
	writeEntry(t, s, "octocat/widgets", "chatgpt", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	writeEntry(t, s, "octocat/widgets", "ollama", time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC))
	writeEntry(t, s, "octocat/gadgets", "chatgpt", time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC))

	all := s.All()
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "octocat/gadgets", all[0].Repository)

	assert.Len(t, s.ByRepository("octocat/widgets"), 2)
	assert.Len(t, s.ByProvider("chatgpt"), 2)

	ranged := s.ByDateRange(
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
	)
	require.Len(t, ranged, 1)
	assert.Equal(t, "ollama", ranged[0].Provider)

	assert.Len(t, s.Search("gadgets"), 1)
	assert.Len(t, s.Search("GADGETS"), 1)
	assert.Empty(t, s.Search("nothing"))
}

func TestStoreUpdateAndDelete(t *testing.T) {
	s := testStore(t)
	e := writeEntry(t, s, "octocat/widgets", "chatgpt", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	require.NoError(t, s.Update(e.ID(), func(entry *Entry) {
		entry.Tags = []string{"infra"}
	}))
	assert.Equal(t, []string{"infra"}, s.Get(e.ID()).Tags)

	require.Error(t, s.Update("missing", func(*Entry) {}))

	require.NoError(t, s.Delete(e.ID()))
	assert.Nil(t, s.Get(e.ID()))
	_, err := os.Stat(e.Path)
	assert.True(t, os.IsNotExist(err))

	require.Error(t, s.Delete(e.ID()))
}

func TestStoreStats(t *testing.T) {
	s := testStore(t)
	writeEntry(t, s, "octocat/widgets", "chatgpt", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	writeEntry(t, s, "octocat/widgets", "ollama", time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC))

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 2, stats.Repositories["octocat/widgets"])
	assert.Equal(t, 1, stats.Providers["chatgpt"])
	assert.Greater(t, stats.TotalBytes, int64(0))
}

func TestStoreExport(t *testing.T) {
	s := testStore(t)
	writeEntry(t, s, "octocat/widgets", "chatgpt", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	exportDir := t.TempDir()

	jsonPath, err := s.Export(exportDir, "json")
	require.NoError(t, err)
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_entries": 1`)

	mdPath, err := s.Export(exportDir, "markdown")
	require.NoError(t, err)
	raw, err = os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# DevBlogger Export")
	assert.Contains(t, string(raw), "**Repository:** octocat/widgets")
	assert.Contains(t, string(raw), "body")

	_, err = s.Export(exportDir, "csv")
	require.Error(t, err)
}

func TestStoreCleanupOlderThan(t *testing.T) {
	s := testStore(t)
	writeEntry(t, s, "octocat/widgets", "chatgpt", time.Now().AddDate(0, 0, -120))
	fresh := writeEntry(t, s, "octocat/widgets", "chatgpt", time.Now())

	deleted, err := s.CleanupOlderThan(90)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	require.Len(t, s.All(), 1)
	assert.NotNil(t, s.Get(fresh.ID()))
}

func TestStoreValidateAndRepair(t *testing.T) {
	s := testStore(t)
	indexed := writeEntry(t, s, "octocat/widgets", "chatgpt", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))

	// Orphan: a valid entry file the index does not know about.
	orphan := filepath.Join(s.Dir(), "orphan.md")
	orphanContent := `---
title: Development Update - gadgets
date: 2026-03-12
repository: octocat/gadgets
commit_count: 2
generated_by: ollama (llama2)
generated_at: 2026-03-12 08:00:00
---

orphan body
`
	require.NoError(t, os.WriteFile(orphan, []byte(orphanContent), 0o644))

	// Missing: delete the indexed entry's file behind the store's back.
	require.NoError(t, os.Remove(indexed.Path))

	report, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{indexed.ID()}, report.MissingFiles)
	assert.Equal(t, []string{orphan}, report.OrphanedFiles)
	assert.Equal(t, 2, report.TotalIssues())

	result, err := s.Repair()
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReindexedFiles)
	assert.Equal(t, 1, result.DroppedEntries)
	assert.Empty(t, result.Errors)

	report, err = s.Validate()
	require.NoError(t, err)
	assert.Zero(t, report.TotalIssues())

	reindexed := s.ByRepository("octocat/gadgets")
	require.Len(t, reindexed, 1)
	assert.Equal(t, "ollama", reindexed[0].Provider)
}
