// Package budget assembles documentation artifacts into a context
// string bounded by a per-agent token cap.
//
// The builder is a deterministic greedy algorithm: artifacts are taken
// in priority order, included whole while they fit, the first overflow
// is summarized or truncated to the remaining budget, and everything
// after it is dropped. The assembled output never exceeds the budget.
package budget
