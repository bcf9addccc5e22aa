package budget

// Estimator maps text to an approximate token count.
//
// Contract:
// - Determinism: the same text always yields the same estimate.
// - Concurrency: implementations must be safe for concurrent use.
type Estimator interface {
	// Estimate returns the approximate token count of text.
	Estimate(text string) int
}

// DefaultBytesPerToken is the character-to-token ratio used by the
// heuristic estimator. Four bytes per token tracks typical English
// prose under common LLM tokenizers closely enough for budgeting.
const DefaultBytesPerToken = 4

// HeuristicEstimator estimates tokens as len(text)/BytesPerToken,
// rounded up so partial tokens still count against the budget.
type HeuristicEstimator struct {
	// BytesPerToken is the divisor. Zero or negative selects
	// DefaultBytesPerToken.
	BytesPerToken int
}

// Estimate returns the approximate token count of text.
func (e HeuristicEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	per := e.BytesPerToken
	if per <= 0 {
		per = DefaultBytesPerToken
	}
	return (len(text) + per - 1) / per
}

// Ensure HeuristicEstimator implements Estimator
var _ Estimator = HeuristicEstimator{}
