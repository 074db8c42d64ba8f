package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/store"
)

var (
	dateRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(\d{4}_\d{2}_\d{2})`),
		regexp.MustCompile(`(\d{8})`),
	}
	dateLayouts = []string{"2006-01-02", "2006_01_02", "20060102"}

	hashtagRe  = regexp.MustCompile(`#(\w+)`)
	mentionRe  = regexp.MustCompile(`@(\w+)`)
	byNameRe   = regexp.MustCompile(`(?:by|from|with)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	nameVerbRe = regexp.MustCompile(`([A-Z][a-z]+)\s+(?:said|created|built|deployed|fixed|added|reviewed)`)
	wordRe     = regexp.MustCompile(`\w+`)
	sectionRe  = regexp.MustCompile(`(?m)^## `)
)

// MarkdownStats reports what an import run did.
type MarkdownStats struct {
	FilesProcessed int `json:"files_processed,omitempty"`
	SectionsFound  int `json:"sections_found"`
	NodesCreated   int `json:"nodes_created"`
	NodesSkipped   int `json:"nodes_skipped"`
	EdgesCreated   int `json:"edges_created,omitempty"`
}

// Section is one `## `-delimited journal entry.
type Section struct {
	Header string
	Body   string
}

// ExtractFileDate pulls a date out of filenames like 2026-02-10.md,
// session-2026-02-10.md, or 20260210-notes.md.
func ExtractFileDate(path string) (time.Time, bool) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, re := range dateRes {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if t, err := time.Parse(dateLayouts[i], m[1]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SplitSections breaks markdown content into (header, body) sections at
// `## ` headings. Content before the first heading and empty bodies are
// dropped.
func SplitSections(content string) []Section {
	parts := sectionRe.Split(content, -1)
	var out []Section
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lines := strings.SplitN(part, "\n", 2)
		header := strings.TrimSpace(lines[0])
		body := ""
		if len(lines) > 1 {
			body = strings.TrimSpace(lines[1])
		}
		if body == "" {
			continue
		}
		out = append(out, Section{Header: header, Body: body})
	}
	return out
}

var headerTypeHints = []struct {
	words []string
	t     memory.NodeType
}{
	{[]string{"decision", "decided", "chose", "approved"}, memory.NodeDecision},
	{[]string{"lesson", "learned", "insight", "realization", "til"}, memory.NodeInsight},
	{[]string{"todo", "task", "action item", "next step"}, memory.NodeTask},
	{[]string{"project", "module", "feature", "milestone"}, memory.NodeProject},
	{[]string{"person", "contact", "team member"}, memory.NodePerson},
	{[]string{"meeting", "call", "chat", "discussion"}, memory.NodeConversation},
	{[]string{"created", "built", "deployed", "released", "artifact"}, memory.NodeArtifact},
}

// InferNodeType guesses a node type from a section's header and body.
func InferNodeType(header, body string) memory.NodeType {
	headerLower := strings.ToLower(header)
	for _, hint := range headerTypeHints {
		for _, w := range hint.words {
			if strings.Contains(headerLower, w) {
				return hint.t
			}
		}
	}
	if strings.Contains(body, "- [ ]") || strings.Contains(body, "- [x]") {
		return memory.NodeTask
	}
	return memory.NodeEvent
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {},
}

var topicKeywords = []struct {
	tag      string
	keywords []string
}{
	{"bug", []string{"bug", "fix", "error", "issue"}},
	{"feature", []string{"feature", "implement", "add", "create"}},
	{"test", []string{"test", "coverage", "spec"}},
	{"deploy", []string{"deploy", "release", "production"}},
	{"docs", []string{"document", "readme", "changelog"}},
	{"refactor", []string{"refactor", "cleanup", "reorganize"}},
	{"security", []string{"security", "auth", "permission"}},
	{"performance", []string{"performance", "optimize", "speed"}},
}

// ExtractTags collects lowercase tags from header words, inline hashtags,
// and topic keyword detection, capped at 10.
func ExtractTags(header, body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.ToLower(t)
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, w := range wordRe.FindAllString(strings.ToLower(header), -1) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		add(w)
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	bodyLower := strings.ToLower(body)
	for _, topic := range topicKeywords {
		for _, kw := range topic.keywords {
			if strings.Contains(bodyLower, kw) {
				add(topic.tag)
				break
			}
		}
	}

	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// ExtractPeople finds people mentioned via @mentions and common
// "Name did ..." / "by Name" phrasings, capped at 5.
func ExtractPeople(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, m := range mentionRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	for _, re := range []*regexp.Regexp{byNameRe, nameVerbRe} {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			add(m[1])
		}
	}

	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// ImportMarkdownFile imports one markdown journal file, one node per `## `
// section. extraTags are added to every node.
func ImportMarkdownFile(st store.Store, path string, extraTags []string, dryRun bool) (*MarkdownStats, []uuid.UUID, error) {
	stats := &MarkdownStats{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}

	fileDate, hasDate := ExtractFileDate(path)
	sections := SplitSections(string(data))
	stats.SectionsFound = len(sections)

	if dryRun {
		return stats, nil, nil
	}

	var created []uuid.UUID
	for _, sec := range sections {
		tags := ExtractTags(sec.Header, sec.Body)
		tags = append(tags, extraTags...)
		tags = dedupStrings(tags)

		when := time.Now().UTC()
		if hasDate {
			when = fileDate
		}

		node := memory.NewNode(InferNodeType(sec.Header, sec.Body), sec.Header+"\n\n"+sec.Body)
		node.When = &when
		node.Who = ExtractPeople(sec.Body)
		node.Tags = tags
		node.Source = "md:" + filepath.Base(path)

		hash := ContentHash(node.What, when.Format(time.RFC3339), node.Source)
		id, wasNew, err := AddNodeWithDedup(st, node, hash)
		if err != nil {
			return nil, nil, err
		}
		if wasNew {
			stats.NodesCreated++
			created = append(created, id)
		} else {
			stats.NodesSkipped++
		}
	}
	return stats, created, nil
}

// ImportMarkdownDir imports every file matching pattern (default *.md) in
// dir, linking nodes from the same dated file in section order with
// preceded_by edges.
func ImportMarkdownDir(st store.Store, dir, pattern string, extraTags []string, linkByDate, dryRun bool) (*MarkdownStats, error) {
	if pattern == "" {
		pattern = "*.md"
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("ingest: glob: %w", err)
	}
	sort.Strings(files)

	stats := &MarkdownStats{}
	nodesByDate := make(map[string][]uuid.UUID)
	var dateOrder []string

	for _, path := range files {
		fileStats, created, err := ImportMarkdownFile(st, path, extraTags, dryRun)
		if err != nil {
			return nil, err
		}
		stats.FilesProcessed++
		stats.SectionsFound += fileStats.SectionsFound
		stats.NodesCreated += fileStats.NodesCreated
		stats.NodesSkipped += fileStats.NodesSkipped

		if linkByDate && !dryRun {
			if d, ok := ExtractFileDate(path); ok {
				key := d.Format("2006-01-02")
				if _, seen := nodesByDate[key]; !seen {
					dateOrder = append(dateOrder, key)
				}
				nodesByDate[key] = append(nodesByDate[key], created...)
			}
		}
	}

	if linkByDate && !dryRun {
		for _, key := range dateOrder {
			ids := nodesByDate[key]
			for i := 0; i+1 < len(ids); i++ {
				edge := memory.NewEdge(ids[i], ids[i+1], memory.EdgePrecededBy)
				edge.Metadata = map[string]any{"date": key}
				if _, err := st.AddEdge(edge); err != nil {
					return nil, err
				}
				stats.EdgesCreated++
			}
		}
	}
	return stats, nil
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
