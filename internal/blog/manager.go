// SPDX-License-Identifier: AGPL-3.0-or-later
package blog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bartekus/devblogger/internal/ai"
	"github.com/bartekus/devblogger/internal/config"
	"github.com/bartekus/devblogger/internal/github"
	"github.com/bartekus/devblogger/internal/ledger"
)

// Manager is the high-level blog workflow: generate, save, index, and mark
// the source commits processed.
type Manager struct {
	generator *Generator
	store     *Store
	ledger    *ledger.Store
	log       zerolog.Logger
}

// NewManager wires the blog pipeline on top of the provider registry,
// settings, and the commit ledger.
func NewManager(registry *ai.Registry, settings *config.Settings, store *ledger.Store, log zerolog.Logger) (*Manager, error) {
	entryStore, err := OpenStore(settings.EntriesDir(), log)
	if err != nil {
		return nil, err
	}
	return &Manager{
		generator: NewGenerator(registry, settings, store, log),
		store:     entryStore,
		ledger:    store,
		log:       log,
	}, nil
}

// Generator exposes the generation engine for pre-flight checks.
func (m *Manager) Generator() *Generator { return m.generator }

// Store exposes the entry index.
func (m *Manager) Store() *Store { return m.store }

// GenerateResult is a generated, saved, and indexed blog entry.
type GenerateResult struct {
	EntryID string
	Path    string
	Result  *Result
}

// GenerateAndSave runs the full pipeline for one repository: generate the
// entry, write it to disk, index it, and mark every commit processed.
func (m *Manager) GenerateAndSave(ctx context.Context, commits []github.Commit, repository string, opts GenerateOptions, filename string) (*GenerateResult, error) {
	if issues := m.generator.Validate(commits, repository); len(issues) > 0 {
		for _, issue := range issues {
			m.log.Warn().Str("repository", repository).Msg(issue)
		}
	}

	result, err := m.generator.Generate(ctx, commits, repository, opts)
	if err != nil {
		return nil, err
	}

	path, err := m.generator.Save(result.Content, repository, filename)
	if err != nil {
		return nil, err
	}

	entryID, err := m.store.Add(&Entry{
		Path:        path,
		Repository:  repository,
		CommitCount: result.CommitCount,
		Provider:    result.Provider,
		Model:       result.Model,
		GeneratedAt: result.GeneratedAt,
		Title:       DefaultTitle(repository),
	})
	if err != nil {
		return nil, err
	}

	m.markProcessed(commits, repository, result.Provider, path, opts.Prompt)

	return &GenerateResult{EntryID: entryID, Path: path, Result: result}, nil
}

func (m *Manager) markProcessed(commits []github.Commit, repository, provider, path, prompt string) {
	for _, c := range commits {
		err := m.ledger.MarkProcessed(repository, c.SHA, ledger.MarkOptions{
			ProcessType:   ledger.ProcessTypeBlog,
			BlogEntryPath: path,
			AIProvider:    provider,
			PromptUsed:    prompt,
		})
		if err != nil {
			m.log.Warn().Err(err).Str("sha", c.SHA).Msg("marking commit processed")
		}
	}
}

// Regenerate re-runs generation for an indexed entry with a different
// provider, overwriting the entry file and updating the index record.
func (m *Manager) Regenerate(ctx context.Context, entryID string, commits []github.Commit, newProvider, prompt string) (*GenerateResult, error) {
	entry := m.store.Get(entryID)
	if entry == nil {
		return nil, fmt.Errorf("blog entry %q not found", entryID)
	}

	result, err := m.generator.Generate(ctx, commits, entry.Repository, GenerateOptions{
		Prompt:   prompt,
		Provider: newProvider,
	})
	if err != nil {
		return nil, err
	}

	// Keep the original filename so references stay valid.
	path, err := m.generator.Save(result.Content, entry.Repository, entryFilename(entry))
	if err != nil {
		return nil, err
	}

	err = m.store.Update(entryID, func(e *Entry) {
		e.Path = path
		e.Provider = result.Provider
		e.Model = result.Model
		e.GeneratedAt = result.GeneratedAt
	})
	if err != nil {
		return nil, err
	}

	m.markProcessed(commits, entry.Repository, result.Provider, path, prompt)

	return &GenerateResult{EntryID: entryID, Path: path, Result: result}, nil
}

func entryFilename(e *Entry) string {
	return filepath.Base(e.Path)
}

// BulkResult summarizes a multi-repository generation run.
type BulkResult struct {
	Total      int
	Successful int
	Failed     int
	Results    map[string]*GenerateResult
	Errors     map[string]error
}

// BulkGenerate runs GenerateAndSave per repository, continuing on failures.
func (m *Manager) BulkGenerate(ctx context.Context, selections map[string][]github.Commit, opts GenerateOptions) BulkResult {
	result := BulkResult{
		Total:   len(selections),
		Results: map[string]*GenerateResult{},
		Errors:  map[string]error{},
	}

	// Stable order keeps logs and ledger writes deterministic.
	repos := make([]string, 0, len(selections))
	for repo := range selections {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	for _, repo := range repos {
		gr, err := m.GenerateAndSave(ctx, selections[repo], repo, opts, "")
		if err != nil {
			m.log.Error().Err(err).Str("repository", repo).Msg("bulk generation failed")
			result.Errors[repo] = err
			result.Failed++
			continue
		}
		result.Results[repo] = gr
		result.Successful++
	}
	return result
}

// EntryFilter narrows Entries listings. Zero values match everything.
type EntryFilter struct {
	Repository string
	Provider   string
	Limit      int
	Offset     int
}

// Entries lists indexed entries newest first, with optional filtering and
// pagination.
func (m *Manager) Entries(filter EntryFilter) []*Entry {
	entries := m.store.All()

	if filter.Repository != "" {
		entries = keepEntries(entries, func(e *Entry) bool { return e.Repository == filter.Repository })
	}
	if filter.Provider != "" {
		entries = keepEntries(entries, func(e *Entry) bool { return e.Provider == filter.Provider })
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(entries) {
			return nil
		}
		entries = entries[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(entries) {
		entries = entries[:filter.Limit]
	}
	return entries
}

func keepEntries(entries []*Entry, keep func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// RecentEntries returns the newest entries, at most limit.
func (m *Manager) RecentEntries(limit int) []*Entry {
	return m.Entries(EntryFilter{Limit: limit})
}

// RepositoryCount pairs a repository with its entry count.
type RepositoryCount struct {
	Repository string
	Count      int
}

// PopularRepositories ranks repositories by entry count, descending.
func (m *Manager) PopularRepositories(limit int) []RepositoryCount {
	stats := m.store.Stats()

	out := make([]RepositoryCount, 0, len(stats.Repositories))
	for repo, count := range stats.Repositories {
		out = append(out, RepositoryCount{Repository: repo, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Repository < out[j].Repository
	})

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// ProviderUsage counts entries per AI provider.
func (m *Manager) ProviderUsage() map[string]int {
	return m.store.Stats().Providers
}

// HistoryRecord is one line of the generation history.
type HistoryRecord struct {
	EntryID     string    `json:"entry_id"`
	Repository  string    `json:"repository"`
	Title       string    `json:"title"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	CommitCount int       `json:"commit_count"`
	GeneratedAt time.Time `json:"generated_at"`
	Path        string    `json:"filepath"`
}

// GenerationHistory lists past generations, newest first, optionally
// scoped to one repository.
func (m *Manager) GenerationHistory(repository string) []HistoryRecord {
	entries := m.Entries(EntryFilter{Repository: repository})

	out := make([]HistoryRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryRecord{
			EntryID:     e.ID(),
			Repository:  e.Repository,
			Title:       e.Title,
			Provider:    e.Provider,
			Model:       e.Model,
			CommitCount: e.CommitCount,
			GeneratedAt: e.GeneratedAt,
			Path:        e.Path,
		})
	}
	return out
}
