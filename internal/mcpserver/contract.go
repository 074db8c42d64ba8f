package mcpserver

// MemoryFormatContract describes the memory node and edge conventions
// that LLM consumers should follow when storing or linking memories.
const MemoryFormatContract = `# Engram Memory Format Contract

Every memory stored in Engram is a node indexed along the 5W+H axes,
optionally linked to other memories by typed directed edges.

## Node fields

- **what** (required): the memory content, one or a few sentences.
- **type**: one of event, decision, artifact, conversation, insight,
  person, project, task. Defaults to event.
- **when**: RFC 3339 timestamp of when it happened. Defaults to now.
- **where**: file path, repository, meeting, URL.
- **who**: list of people or agents involved.
- **why**: motivation or significance.
- **how**: method or mechanism.
- **tags**: lowercase keywords for filtering.
- **project**: the project this memory belongs to. Leave empty only for
  cross-project knowledge.
- **scope**: branch (default) for project-local memories, root for
  durable cross-project lessons. Root memories surface in every
  project query.

## Edge types

- causality: caused_by, led_to, supersedes
- time: preceded_by
- association: relates_to, contradicts, supports, mentions
- structure: part_of, derived_from
- scope: exposes_root (branch memory surfaced a root lesson),
  addresses_root (work that acts on a root lesson)

Edges are directed. ` + "`" + `A -[led_to]-> B` + "`" + ` means A led to B.

## Rules

1. Store decisions with their **why**. A decision without rationale is
   half a memory.
2. Prefer linking over repeating: if a memory extends an existing one,
   create it and add a ` + "`" + `derived_from` + "`" + ` or ` + "`" + `relates_to` + "`" + ` edge.
3. When a project-local memory reveals a durable lesson, store the
   lesson as a root-scope node and link it with ` + "`" + `exposes_root` + "`" + `.
4. Tags are lowercase, short, and reusable (e.g. ` + "`" + `auth` + "`" + `, ` + "`" + `perf` + "`" + `,
   ` + "`" + `postmortem` + "`" + `).
`
