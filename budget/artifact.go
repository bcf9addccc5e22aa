package budget

import "sort"

// Artifact is one unit of candidate content competing for inclusion in
// an assembled context. Artifacts are ephemeral: callers construct them
// per request and discard them after assembly.
type Artifact struct {
	// ID names the artifact in the assembled output header.
	ID string

	// Content is the candidate text.
	Content string

	// Priority orders inclusion; lower is more important.
	Priority int

	// Category selects an optional summary template when the artifact
	// overflows the budget.
	Category string
}

// sortByPriority orders artifacts by (priority, insertion index).
// The stable sort preserves insertion order between equal priorities,
// which makes tie-breaks deterministic.
func sortByPriority(artifacts []Artifact) []Artifact {
	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}
