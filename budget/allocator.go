package budget

// DefaultCap is the per-agent token cap applied when no explicit cap
// is configured for an agent.
const DefaultCap = 4000

// Allocator resolves the token cap for a given agent. Caps are static
// configuration; the allocator performs no accounting across requests.
type Allocator struct {
	// Caps maps agent IDs to their token caps.
	Caps map[string]int

	// Default applies to agents absent from Caps. Zero or negative
	// selects DefaultCap.
	Default int
}

// ResolveCap returns the token cap for agentID.
func (a *Allocator) ResolveCap(agentID string) int {
	if a != nil && a.Caps != nil {
		if tokenCap, ok := a.Caps[agentID]; ok && tokenCap > 0 {
			return tokenCap
		}
	}
	if a != nil && a.Default > 0 {
		return a.Default
	}
	return DefaultCap
}
