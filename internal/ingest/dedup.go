// Package ingest turns external sources (git history, markdown journals)
// into memory nodes and edges, deduplicating by content hash so re-running
// an import is idempotent.
package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/checksum"
	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/store"
)

// ContentHash fingerprints a candidate node by its content, timestamp, and
// source identifier (e.g. "git:repo:abc1234" or "md:2026-02-10.md").
func ContentHash(what, when, source string) string {
	parts := []string{strings.TrimSpace(what)}
	if when != "" {
		parts = append(parts, when)
	}
	if source != "" {
		parts = append(parts, source)
	}
	return checksum.Short([]byte(strings.Join(parts, "|")))
}

// AddNodeWithDedup inserts a node unless a node with the same content hash
// already exists. The hash is appended to the node's source field using the
// "hash:<v>" convention the store indexes. Returns the stored id and whether
// the node was newly created.
func AddNodeWithDedup(st store.Store, n *memory.MemoryNode, hash string) (uuid.UUID, bool, error) {
	if hash != "" {
		existing, found, err := st.FindBySourceHash(hash)
		if err != nil {
			return uuid.Nil, false, err
		}
		if found {
			return existing, false, nil
		}
		if n.Source != "" {
			n.Source = n.Source + " hash:" + hash
		} else {
			n.Source = "hash:" + hash
		}
	}
	id, err := st.AddNode(n)
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}
