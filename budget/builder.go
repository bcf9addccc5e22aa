package budget

import "strings"

// TruncationMarker is appended to an artifact whose content had to be
// cut to fit the remaining budget. Its own token cost is counted
// against the budget.
const TruncationMarker = "\n[truncated: content exceeds context budget]"

// Summarizer produces a condensed stand-in for an artifact that does
// not fit whole. Returning "" means no summary is available and the
// builder falls back to truncation.
type Summarizer func(Artifact) string

// Builder assembles artifacts into a single context string bounded by
// a token budget.
//
// Contract:
// - Determinism: identical inputs yield an identical output string.
// - The estimated token count of the output never exceeds the budget.
// - Artifacts are considered in ascending Priority order; ties keep
//   their input order.
// - Full inclusion always wins over partial: an artifact is only
//   summarized or truncated when it is the first one that no longer
//   fits whole. Everything after it is dropped.
type Builder struct {
	// Estimator maps text to tokens. Nil selects HeuristicEstimator{}.
	Estimator Estimator

	// Summarize, when set, is tried before truncation on the first
	// artifact that overflows the budget.
	Summarize Summarizer

	// Separator joins rendered artifacts. Empty selects "\n\n".
	Separator string
}

// Result describes one assembly pass.
type Result struct {
	// Context is the assembled output.
	Context string

	// Tokens is the estimated token count of Context.
	Tokens int

	// Included lists IDs of artifacts present whole.
	Included []string

	// Summarized lists IDs replaced by a summary.
	Summarized []string

	// Truncated lists IDs whose content was cut to fit.
	Truncated []string

	// Dropped lists IDs excluded entirely.
	Dropped []string
}

// Build assembles artifacts under budget tokens. A zero or negative
// budget yields an empty context with every artifact dropped.
func (b *Builder) Build(artifacts []Artifact, budget int) Result {
	est := b.Estimator
	if est == nil {
		est = HeuristicEstimator{}
	}
	sep := b.Separator
	if sep == "" {
		sep = "\n\n"
	}

	result := Result{}
	if budget <= 0 {
		for _, a := range artifacts {
			result.Dropped = append(result.Dropped, a.ID)
		}
		return result
	}

	ordered := sortByPriority(artifacts)

	var out strings.Builder
	overflowed := false
	for _, a := range ordered {
		if overflowed {
			result.Dropped = append(result.Dropped, a.ID)
			continue
		}

		prefix := ""
		if out.Len() > 0 {
			prefix = sep
		}

		candidate := out.String() + prefix + a.Content
		if est.Estimate(candidate) <= budget {
			out.WriteString(prefix)
			out.WriteString(a.Content)
			result.Included = append(result.Included, a.ID)
			continue
		}

		// First overflow: try a summary, then a truncated tail,
		// then give up on this artifact too. Either way nothing
		// after it is considered.
		overflowed = true

		if b.Summarize != nil {
			if summary := b.Summarize(a); summary != "" {
				candidate = out.String() + prefix + summary
				if est.Estimate(candidate) <= budget {
					out.WriteString(prefix)
					out.WriteString(summary)
					result.Summarized = append(result.Summarized, a.ID)
					continue
				}
			}
		}

		if cut, ok := truncateToFit(est, out.String()+prefix, a.Content, budget); ok {
			out.WriteString(prefix)
			out.WriteString(cut)
			result.Truncated = append(result.Truncated, a.ID)
			continue
		}

		result.Dropped = append(result.Dropped, a.ID)
	}

	result.Context = out.String()
	result.Tokens = est.Estimate(result.Context)
	return result
}

// truncateToFit finds the longest prefix of content that, appended to
// base with the truncation marker, stays within budget. The search is
// binary over the prefix length, so it only assumes the estimator is
// monotone in text length. Returns false when not even the marker
// alone fits.
func truncateToFit(est Estimator, base, content string, budget int) (string, bool) {
	fits := func(n int) bool {
		return est.Estimate(base+content[:n]+TruncationMarker) <= budget
	}
	if !fits(0) {
		return "", false
	}

	lo, hi := 0, len(content)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return "", false
	}
	return content[:lo] + TruncationMarker, true
}
