package budget

import "testing"

func TestAllocator_ResolveCap(t *testing.T) {
	alloc := &Allocator{
		Caps:    map[string]int{"reviewer": 3000, "planner": 8000},
		Default: 4000,
	}

	tests := []struct {
		agentID string
		want    int
	}{
		{"reviewer", 3000},
		{"planner", 8000},
		{"unknown-agent", 4000},
		{"", 4000},
	}

	for _, tt := range tests {
		if got := alloc.ResolveCap(tt.agentID); got != tt.want {
			t.Errorf("ResolveCap(%q) = %d, want %d", tt.agentID, got, tt.want)
		}
	}
}

func TestAllocator_ZeroValueFallsBackToDefaultCap(t *testing.T) {
	var alloc Allocator
	if got := alloc.ResolveCap("anyone"); got != DefaultCap {
		t.Errorf("ResolveCap on zero allocator = %d, want %d", got, DefaultCap)
	}
}

func TestAllocator_NonPositiveConfiguredCapIgnored(t *testing.T) {
	alloc := &Allocator{Caps: map[string]int{"broken": 0}}
	if got := alloc.ResolveCap("broken"); got != DefaultCap {
		t.Errorf("ResolveCap with zero cap = %d, want %d", got, DefaultCap)
	}
}
