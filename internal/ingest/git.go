package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/store"
)

// CommitFilter decides which commits are worth remembering.
type CommitFilter struct {
	SkipMerge   bool
	SkipTrivial bool

	// Messages matching any of these are skipped.
	TrivialPatterns []*regexp.Regexp
	// Messages matching any of these are always kept.
	SignificantPatterns []*regexp.Regexp
	// Touching a file matching any of these keeps the commit.
	SignificantFiles []*regexp.Regexp

	MaxCommits int // 0 = unlimited
	Since      *time.Time
	Until      *time.Time
}

// DefaultCommitFilter skips merges, WIP/fixup noise, and lockfile churn, and
// always keeps conventional feat/fix/refactor/perf/security commits.
func DefaultCommitFilter() *CommitFilter {
	compile := func(patterns ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(patterns))
		for i, p := range patterns {
			out[i] = regexp.MustCompile(`(?i)` + p)
		}
		return out
	}
	return &CommitFilter{
		SkipMerge:   true,
		SkipTrivial: true,
		TrivialPatterns: compile(
			`^Merge (branch|pull request)`,
			`^WIP`,
			`^fixup!`,
			`^squash!`,
			`^chore: Update.*lock`,
			`^chore: Bump version`,
		),
		SignificantPatterns: compile(
			`^feat:`,
			`^fix:`,
			`^refactor:`,
			`^perf:`,
			`^security:`,
			`^BREAKING CHANGE`,
		),
		SignificantFiles: compile(
			`README\.md`,
			`CHANGELOG\.md`,
			`\.env`,
			`Dockerfile`,
			`docker-compose`,
			`\.github/workflows/`,
		),
	}
}

// Commit is one parsed git log entry.
type Commit struct {
	Hash    string
	Author  string
	Date    time.Time
	Message string
	Files   []string
}

// ShortHash returns the 7-character abbreviated hash.
func (c *Commit) ShortHash() string {
	if len(c.Hash) < 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

var conventionalRe = regexp.MustCompile(`^(\w+)(?:\([^)]+\))?:`)

// ConventionalType extracts the conventional-commit prefix (feat, fix, ...)
// or empty string.
func (c *Commit) ConventionalType() string {
	m := conventionalRe.FindStringSubmatch(c.Message)
	if m == nil {
		return ""
	}
	return m[1]
}

// GitStats reports what a repository import did.
type GitStats struct {
	TotalCommits       int `json:"total_commits"`
	SignificantCommits int `json:"significant_commits"`
	NodesCreated       int `json:"nodes_created"`
	NodesSkipped       int `json:"nodes_skipped"`
	EdgesCreated       int `json:"edges_created"`
}

// ParseGitLog runs `git log` on the repository at repoPath and parses the
// output into commits, honoring the filter's date window and commit cap.
func ParseGitLog(ctx context.Context, repoPath string, filter *CommitFilter) ([]*Commit, error) {
	args := []string{"-C", repoPath, "log", "--format=%H|%an|%aI|%s", "--name-only"}
	if filter.Since != nil {
		args = append(args, "--since="+filter.Since.Format(time.RFC3339))
	}
	if filter.Until != nil {
		args = append(args, "--until="+filter.Until.Format(time.RFC3339))
	}
	if filter.MaxCommits > 0 {
		// Over-fetch; significance filtering trims afterwards.
		args = append(args, fmt.Sprintf("-n%d", filter.MaxCommits*2))
	}

	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ingest: git log: %w", err)
	}
	return parseLogOutput(string(out)), nil
}

func parseLogOutput(out string) []*Commit {
	var (
		commits []*Commit
		current *Commit
	)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			if current != nil {
				commits = append(commits, current)
				current = nil
			}
			continue
		}
		if parts := strings.Split(line, "|"); len(parts) == 4 && len(parts[0]) == 40 {
			if current != nil {
				commits = append(commits, current)
			}
			date, err := time.Parse(time.RFC3339, parts[2])
			if err != nil {
				date = time.Now().UTC()
			}
			current = &Commit{
				Hash:    parts[0],
				Author:  parts[1],
				Date:    date.UTC(),
				Message: parts[3],
			}
			continue
		}
		if current != nil {
			current.Files = append(current.Files, strings.TrimSpace(line))
		}
	}
	if current != nil {
		commits = append(commits, current)
	}
	return commits
}

// IsSignificant reports whether a commit passes the filter.
func IsSignificant(c *Commit, filter *CommitFilter) bool {
	if filter.SkipMerge && strings.HasPrefix(c.Message, "Merge") {
		return false
	}
	if filter.SkipTrivial {
		for _, re := range filter.TrivialPatterns {
			if re.MatchString(c.Message) {
				return false
			}
		}
	}
	for _, re := range filter.SignificantPatterns {
		if re.MatchString(c.Message) {
			return true
		}
	}
	for _, f := range c.Files {
		for _, re := range filter.SignificantFiles {
			if re.MatchString(f) {
				return true
			}
		}
	}
	return true
}

// CommitToNode maps a commit to a memory node: conventional type picks the
// node type, files contribute language tags, and the source records
// "git:<repo>:<shorthash>".
func CommitToNode(c *Commit, repoName string) *memory.MemoryNode {
	var nodeType memory.NodeType
	switch c.ConventionalType() {
	case "feat", "feature", "refactor", "perf", "docs", "doc", "test", "tests":
		nodeType = memory.NodeArtifact
	case "decision":
		nodeType = memory.NodeDecision
	default:
		nodeType = memory.NodeEvent
	}

	tags := []string{repoName}
	if ct := c.ConventionalType(); ct != "" {
		tags = append(tags, ct)
	}
	fileTags := make(map[string]struct{})
	for _, f := range c.Files {
		switch {
		case strings.HasSuffix(f, ".go"):
			fileTags["go"] = struct{}{}
		case strings.HasSuffix(f, ".py"):
			fileTags["python"] = struct{}{}
		case strings.HasSuffix(f, ".js") || strings.HasSuffix(f, ".ts"):
			fileTags["javascript"] = struct{}{}
		case strings.HasSuffix(f, ".md"):
			fileTags["docs"] = struct{}{}
		case strings.HasSuffix(f, ".yml") || strings.HasSuffix(f, ".yaml"):
			fileTags["ci"] = struct{}{}
		}
		if strings.Contains(strings.ToLower(f), "test") {
			fileTags["testing"] = struct{}{}
		}
	}
	for t := range fileTags {
		tags = append(tags, t)
	}

	how := strings.Join(firstN(c.Files, 5), ", ")
	if len(c.Files) > 5 {
		how += fmt.Sprintf(" (+%d more)", len(c.Files)-5)
	}

	node := memory.NewNode(nodeType, c.Message)
	when := c.Date
	node.When = &when
	node.Who = []string{c.Author}
	node.How = how
	node.Tags = dedupStrings(tags)
	node.Source = fmt.Sprintf("git:%s:%s", repoName, c.ShortHash())
	return node
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ImportGitRepo imports significant commits from the repository at repoPath.
// With linkRelated set, commits that touched the same file are connected by
// relates_to edges (one edge per pair, whichever shared file came first).
func ImportGitRepo(ctx context.Context, st store.Store, repoPath string, filter *CommitFilter, linkRelated, dryRun bool) (*GitStats, error) {
	if filter == nil {
		filter = DefaultCommitFilter()
	}
	repoName := filepath.Base(repoPath)

	all, err := ParseGitLog(ctx, repoPath, filter)
	if err != nil {
		return nil, err
	}

	var significant []*Commit
	for _, c := range all {
		if IsSignificant(c, filter) {
			significant = append(significant, c)
		}
	}
	if filter.MaxCommits > 0 && len(significant) > filter.MaxCommits {
		significant = significant[:filter.MaxCommits]
	}

	stats := &GitStats{
		TotalCommits:       len(all),
		SignificantCommits: len(significant),
	}
	if dryRun {
		return stats, nil
	}

	filesToNodes := make(map[string][]uuid.UUID)
	var fileOrder []string

	for _, c := range significant {
		node := CommitToNode(c, repoName)
		hash := ContentHash(node.What, node.When.Format(time.RFC3339), node.Source)

		id, wasNew, err := AddNodeWithDedup(st, node, hash)
		if err != nil {
			return nil, err
		}
		if !wasNew {
			stats.NodesSkipped++
			continue
		}
		stats.NodesCreated++
		for _, f := range c.Files {
			if _, seen := filesToNodes[f]; !seen {
				fileOrder = append(fileOrder, f)
			}
			filesToNodes[f] = append(filesToNodes[f], id)
		}
	}

	if linkRelated {
		type pair struct{ a, b uuid.UUID }
		linked := make(map[pair]struct{})
		for _, f := range fileOrder {
			ids := filesToNodes[f]
			for i, src := range ids {
				for _, dst := range ids[i+1:] {
					key := pair{src, dst}
					if src.String() > dst.String() {
						key = pair{dst, src}
					}
					if _, done := linked[key]; done {
						continue
					}
					linked[key] = struct{}{}

					edge := memory.NewEdge(src, dst, memory.EdgeRelatesTo)
					edge.Metadata = map[string]any{"shared_file": f}
					if _, err := st.AddEdge(edge); err != nil {
						return nil, err
					}
					stats.EdgesCreated++
				}
			}
		}
	}
	return stats, nil
}
