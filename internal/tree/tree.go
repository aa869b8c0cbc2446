// internal/tree/tree.go
package tree

import (
	"sort"
	"strings"

	"keep/internal/commit"
)

// WorkingSet returns the live (non-deleted) change records of a head
// commit, keyed by path. Commits store cumulative snapshots, so the
// head's own change set is the whole picture; no ancestor replay.
func WorkingSet(head *commit.Commit) map[string]commit.FileChange {
	live := make(map[string]commit.FileChange, len(head.Changes))
	for _, fc := range head.Changes {
		if fc.Kind == commit.Deleted {
			continue
		}
		live[fc.Path] = fc
	}
	return live
}

// normalizePrefix turns a requested path prefix into the internal
// "segment/" form: empty for the repository root, otherwise ending in
// a single slash.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// List materializes the directory listing for a path prefix from the
// head commit's working set. Entries directly under the prefix come
// out as file nodes; deeper entries collapse into one synthesized dir
// node per immediate child segment. Ordering is a contract: dirs
// before files, lexicographic within each group. An unknown prefix
// yields an empty listing, not an error.
func List(head *commit.Commit, prefix string) []Node {
	prefix = normalizePrefix(prefix)

	files := make([]string, 0)
	dirs := make(map[string]bool)

	for path := range WorkingSet(head) {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dirs[prefix+rest[:idx]] = true
		} else {
			files = append(files, path)
		}
	}

	nodes := make([]Node, 0, len(dirs)+len(files))
	for dir := range dirs {
		nodes = append(nodes, Node{Path: dir, Type: NodeDir})
	}
	for _, file := range files {
		nodes = append(nodes, Node{Path: file, Type: NodeFile})
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Type != nodes[j].Type {
			return nodes[i].Type == NodeDir
		}
		return nodes[i].Path < nodes[j].Path
	})
	return nodes
}
