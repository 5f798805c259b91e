// SPDX-License-Identifier: AGPL-3.0-or-later
package blog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bartekus/devblogger/internal/ai"
	"github.com/bartekus/devblogger/internal/config"
	"github.com/bartekus/devblogger/internal/fsutil"
	"github.com/bartekus/devblogger/internal/github"
	"github.com/bartekus/devblogger/internal/ledger"
)

// At most this many changed files are listed per commit in the prompt.
const maxPromptFiles = 10

// Warn when a selection exceeds this many commits.
const largeSelection = 50

// Generator turns commits into blog entry markdown via an AI provider.
type Generator struct {
	registry *ai.Registry
	settings *config.Settings
	ledger   *ledger.Store
	log      zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewGenerator wires the generation engine.
func NewGenerator(registry *ai.Registry, settings *config.Settings, store *ledger.Store, log zerolog.Logger) *Generator {
	return &Generator{
		registry: registry,
		settings: settings,
		ledger:   store,
		log:      log,
		now:      time.Now,
	}
}

// GenerateOptions tunes a single generation run. Zero values fall back to
// configuration defaults.
type GenerateOptions struct {
	Prompt      string
	Provider    string
	MaxTokens   int
	Temperature *float64
}

// Result is a successfully generated blog entry, not yet saved.
type Result struct {
	Content     string
	Repository  string
	CommitCount int
	Provider    string
	Model       string
	TokensUsed  int
	GeneratedAt time.Time
}

// Generate produces a complete blog entry (frontmatter, body, commit
// references) from the given commits.
func (g *Generator) Generate(ctx context.Context, commits []github.Commit, repository string, opts GenerateOptions) (*Result, error) {
	if len(commits) == 0 {
		return nil, errors.New("no commits provided for blog generation")
	}
	if repository == "" {
		return nil, errors.New("repository name is required")
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = g.settings.BlogPrompt()
	}

	provider, err := g.resolveProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	fullPrompt := prompt + "\n\n" + PrepareCommitData(commits, repository)

	g.log.Info().
		Str("repository", repository).
		Int("commits", len(commits)).
		Str("provider", provider.Name()).
		Msg("generating blog entry")

	resp, err := provider.Generate(ctx, fullPrompt, ai.Options{
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generating blog entry: %w", err)
	}

	generatedAt := g.now()
	content := formatEntry(resp.Text, commits, repository, provider.Name(), resp.Model, generatedAt)

	return &Result{
		Content:     content,
		Repository:  repository,
		CommitCount: len(commits),
		Provider:    provider.Name(),
		Model:       resp.Model,
		TokensUsed:  resp.TokensUsed,
		GeneratedAt: generatedAt,
	}, nil
}

func (g *Generator) resolveProvider(name string) (ai.Provider, error) {
	if name == "" {
		p := g.registry.Active()
		if p == nil {
			return nil, errors.New("no ai provider available")
		}
		return p, nil
	}
	p := g.registry.Get(name)
	if p == nil || !p.Configured() {
		return nil, fmt.Errorf("ai provider %q is not configured", name)
	}
	return p, nil
}

// Save writes entry content into the entries directory. An empty filename
// derives one from the repository and timestamp.
func (g *Generator) Save(content, repository, filename string) (string, error) {
	if filename == "" {
		filename = strings.ReplaceAll(repository, "/", "_") + "_" + g.now().Format(entryIDTimeLayout) + ".md"
	} else if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}

	dir := g.settings.EntriesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating entries directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := fsutil.AtomicWrite(path, []byte(content)); err != nil {
		return "", fmt.Errorf("saving blog entry: %w", err)
	}

	g.log.Info().Str("path", path).Msg("blog entry saved")
	return path, nil
}

// PrepareCommitData renders commits into the plain-text block appended to
// the generation prompt.
func PrepareCommitData(commits []github.Commit, repository string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Repository: %s\n", repository)
	fmt.Fprintf(&b, "Total Commits: %d\n\n", len(commits))

	for i, c := range commits {
		fmt.Fprintf(&b, "--- Commit %d ---\n", i+1)
		fmt.Fprintf(&b, "SHA: %s\n", c.SHA)
		fmt.Fprintf(&b, "Author: %s\n", c.Author.DisplayName())
		if c.Date.IsZero() {
			b.WriteString("Date: Unknown\n")
		} else {
			fmt.Fprintf(&b, "Date: %s\n", c.Date.Format(frontmatterTimeLayout))
		}
		fmt.Fprintf(&b, "Message: %s\n", c.Message)

		if len(c.Files) > 0 {
			b.WriteString("Files Changed:\n")
			for j, f := range c.Files {
				if j == maxPromptFiles {
					fmt.Fprintf(&b, "  ... and %d more files\n", len(c.Files)-maxPromptFiles)
					break
				}
				fmt.Fprintf(&b, "  %s %s", f.Status, f.Filename)
				if f.Additions > 0 {
					fmt.Fprintf(&b, " (+%d)", f.Additions)
				}
				if f.Deletions > 0 {
					fmt.Fprintf(&b, " (-%d)", f.Deletions)
				}
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// formatEntry assembles frontmatter, cleaned body, and commit references.
func formatEntry(text string, commits []github.Commit, repository, provider, model string, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", DefaultTitle(repository))
	fmt.Fprintf(&b, "date: %s\n", generatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "repository: %s\n", repository)
	fmt.Fprintf(&b, "commit_count: %d\n", len(commits))
	fmt.Fprintf(&b, "generated_by: %s (%s)\n", provider, model)
	fmt.Fprintf(&b, "generated_at: %s\n", generatedAt.Format(frontmatterTimeLayout))
	b.WriteString("---\n\n")

	b.WriteString(CleanContent(text))
	b.WriteString(commitReferences(commits))

	return b.String()
}

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	headerLine     = regexp.MustCompile(`(?m)^(#{1,6} .+)$`)
	numberedItem   = regexp.MustCompile(`(?m)^(\d+\.)\s*`)
	starItem       = regexp.MustCompile(`(?m)^(\*)\s*`)
	dashItem       = regexp.MustCompile(`(?m)^(-)\s*`)
)

// CleanContent normalizes AI output: collapses blank-line runs, pads headers,
// and tightens list markers.
func CleanContent(content string) string {
	if content == "" {
		return ""
	}
	content = excessNewlines.ReplaceAllString(content, "\n\n")
	content = headerLine.ReplaceAllString(content, "$1\n")
	content = numberedItem.ReplaceAllString(content, "$1 ")
	content = starItem.ReplaceAllString(content, "$1 ")
	content = dashItem.ReplaceAllString(content, "$1 ")
	return strings.TrimSpace(content)
}

// commitReferences renders the trailing "Commit Details" section.
func commitReferences(commits []github.Commit) string {
	if len(commits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n## Commit Details\n\n")
	b.WriteString("The following commits were included in this update:\n\n")

	for _, c := range commits {
		date := "Unknown"
		if !c.Date.IsZero() {
			date = c.Date.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "- **%s** by %s on %s: %s\n", c.ShortSHA(), c.Author.DisplayName(), date, c.Subject())
	}

	b.WriteByte('\n')
	return b.String()
}

// GenerationStats summarizes a commit selection before generation.
type GenerationStats struct {
	TotalCommits int
	Authors      []string
	FilesChanged []string
	UniqueFiles  int
	Additions    int
	Deletions    int
	Earliest     time.Time
	Latest       time.Time
	SpanDays     int
}

// Stats aggregates authors, touched files, and the date range of a selection.
func Stats(commits []github.Commit) GenerationStats {
	stats := GenerationStats{TotalCommits: len(commits)}
	if len(commits) == 0 {
		return stats
	}

	authors := map[string]struct{}{}
	files := map[string]struct{}{}

	for _, c := range commits {
		authors[c.Author.DisplayName()] = struct{}{}

		for _, f := range c.Files {
			if f.Filename != "" {
				files[f.Filename] = struct{}{}
			}
			stats.Additions += f.Additions
			stats.Deletions += f.Deletions
		}

		if c.Date.IsZero() {
			continue
		}
		if stats.Earliest.IsZero() || c.Date.Before(stats.Earliest) {
			stats.Earliest = c.Date
		}
		if stats.Latest.IsZero() || c.Date.After(stats.Latest) {
			stats.Latest = c.Date
		}
	}

	for a := range authors {
		stats.Authors = append(stats.Authors, a)
	}
	sort.Strings(stats.Authors)

	for f := range files {
		stats.FilesChanged = append(stats.FilesChanged, f)
	}
	sort.Strings(stats.FilesChanged)
	stats.UniqueFiles = len(stats.FilesChanged)

	if !stats.Earliest.IsZero() && !stats.Latest.IsZero() {
		stats.SpanDays = int(stats.Latest.Sub(stats.Earliest).Hours() / 24)
	}
	return stats
}

// Validate flags conditions that may degrade the generated entry. The
// returned issues are advisory; generation proceeds regardless.
func (g *Generator) Validate(commits []github.Commit, repository string) []string {
	var issues []string

	if len(commits) == 0 {
		return []string{"no commits selected"}
	}
	if len(commits) > largeSelection {
		issues = append(issues, "large number of commits selected - generation may be slow")
	}

	short := 0
	for _, c := range commits {
		if len(strings.TrimSpace(c.Message)) < 10 {
			short++
		}
	}
	if short*2 > len(commits) {
		issues = append(issues, "many commits have very short messages - blog quality may be affected")
	}

	processed := 0
	for _, c := range commits {
		done, err := g.ledger.IsProcessed(repository, c.SHA, ledger.ProcessTypeAny)
		if err != nil {
			g.log.Warn().Err(err).Str("sha", c.SHA).Msg("checking processed state")
			continue
		}
		if done {
			processed++
		}
	}
	if processed > 0 {
		issues = append(issues, fmt.Sprintf("%d commits have already been processed", processed))
	}

	return issues
}

// Per-provider slowdown factors for duration estimates. Local models run
// much slower than hosted APIs.
var providerSpeed = map[string]float64{
	"chatgpt": 1.0,
	"gemini":  1.2,
	"ollama":  2.0,
}

// EstimateDuration gives a rough generation time for a selection.
func EstimateDuration(commitCount int, provider string) time.Duration {
	mult, ok := providerSpeed[provider]
	if !ok {
		mult = 1.5
	}
	seconds := float64(10+commitCount*2) * mult
	return time.Duration(seconds * float64(time.Second))
}
