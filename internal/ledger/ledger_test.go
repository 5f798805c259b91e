// SPDX-License-Identifier: AGPL-3.0-or-later
package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkAndCheckProcessed(t *testing.T) {
	s := openTestStore(t)

	processed, err := s.IsProcessed("owner/repo", "abc123", ProcessTypeAny)
	require.NoError(t, err)
	assert.False(t, processed)

	err = s.MarkProcessed("owner/repo", "abc123", MarkOptions{
		AIProvider:    "chatgpt",
		BlogEntryPath: "/entries/post.md",
		PromptUsed:    "write a post",
	})
	require.NoError(t, err)

	processed, err = s.IsProcessed("owner/repo", "abc123", ProcessTypeAny)
	require.NoError(t, err)
	assert.True(t, processed)

	// Type-specific check: marked as "both" by default.
	processed, err = s.IsProcessed("owner/repo", "abc123", ProcessTypeBoth)
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = s.IsProcessed("owner/repo", "abc123", ProcessTypeBlog)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestMarkUnprocessed(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkProcessed("owner/repo", "abc123", MarkOptions{}))
	require.NoError(t, s.MarkUnprocessed("owner/repo", "abc123", ProcessTypeBoth))

	processed, err := s.IsProcessed("owner/repo", "abc123", ProcessTypeAny)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkProcessed("owner/repo", "abc123", MarkOptions{AIProvider: "gemini"}))
	require.NoError(t, s.MarkProcessed("owner/repo", "abc123", MarkOptions{AIProvider: "ollama"}))

	commits, err := s.ProcessedCommits("owner/repo", 0, 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "ollama", commits[0].AIProvider)
}

func TestCommitMetadataRoundtrip(t *testing.T) {
	s := openTestStore(t)

	date := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	meta := CommitMetadata{
		RepoName:    "owner/repo",
		CommitSHA:   "abc123",
		AuthorName:  "Dev Eloper",
		AuthorEmail: "dev@example.com",
		CommitDate:  date,
		Message:     "fix: handle empty input",
		FileChanges: []map[string]any{
			{"filename": "main.go", "status": "modified"},
		},
	}
	require.NoError(t, s.StoreCommitMetadata(meta))

	got, err := s.Metadata("owner/repo", "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Dev Eloper", got.AuthorName)
	assert.Equal(t, "fix: handle empty input", got.Message)
	assert.True(t, got.CommitDate.Equal(date))
	require.Len(t, got.FileChanges, 1)
	assert.Equal(t, "main.go", got.FileChanges[0]["filename"])

	missing, err := s.Metadata("owner/repo", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProcessedCommitsFiltering(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkProcessed("owner/alpha", "a1", MarkOptions{}))
	require.NoError(t, s.MarkProcessed("owner/alpha", "a2", MarkOptions{}))
	require.NoError(t, s.MarkProcessed("owner/beta", "b1", MarkOptions{}))

	all, err := s.ProcessedCommits("", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	alpha, err := s.ProcessedCommits("owner/alpha", 0, 0)
	require.NoError(t, err)
	assert.Len(t, alpha, 2)

	limited, err := s.ProcessedCommits("", 2, 0)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// Offset without a limit skips rows from the full result.
	rest, err := s.ProcessedCommits("", 0, 1)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	paged, err := s.ProcessedCommits("", 2, 2)
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Setting("missing", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", v)

	require.NoError(t, s.SetSetting("last_repo", "owner/repo"))
	v, err = s.Setting("last_repo", "")
	require.NoError(t, err)
	assert.Equal(t, "owner/repo", v)

	require.NoError(t, s.SetSetting("last_repo", "owner/other"))
	v, err = s.Setting("last_repo", "")
	require.NoError(t, err)
	assert.Equal(t, "owner/other", v)
}

func TestStatsAndVacuum(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkProcessed("owner/repo", "abc123", MarkOptions{}))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["processed_commits"])
	assert.Greater(t, stats["size_bytes"], int64(0))

	require.NoError(t, s.Vacuum())
}

func TestCleanupOlderThanKeepsRecent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.MarkProcessed("owner/repo", "abc123", MarkOptions{}))

	removed, err := s.CleanupOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	processed, err := s.IsProcessed("owner/repo", "abc123", ProcessTypeAny)
	require.NoError(t, err)
	assert.True(t, processed)
}
