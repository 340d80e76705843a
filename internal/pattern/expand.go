package pattern

import (
	"sort"
	"strings"
)

// Limits bound glob expansion.
type Limits struct {
	// MaxMatches stops expansion after this many matches. Zero means no limit.
	MaxMatches int
	// MaxDepth skips paths deeper than this many segments when the pattern
	// contains "**". Zero means no limit.
	MaxDepth int
}

// DefaultLimits are used when no limits are configured.
var DefaultLimits = Limits{MaxMatches: 10000, MaxDepth: 64}

// Expansion is the result of expanding a pattern over a path list.
type Expansion struct {
	Matches   []string
	Truncated bool
	// DepthLimited is set when a path deeper than MaxDepth would have
	// matched.
	DepthLimited bool
}

// Expand returns the paths matching pattern with anchored semantics, in
// sorted order. When more than lim.MaxMatches paths match, the first
// MaxMatches are returned and Truncated is set. Matching paths skipped for
// depth set DepthLimited.
func (m *Matcher) Expand(pattern string, paths []string, lim Limits) (Expansion, error) {
	if err := m.Validate(pattern); err != nil {
		return Expansion{}, err
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	recursive := strings.Contains(pattern, "**")
	var exp Expansion
	for _, p := range sorted {
		ok, err := m.MatchAnchored(p, pattern)
		if err != nil {
			return Expansion{}, err
		}
		if !ok {
			continue
		}
		if recursive && lim.MaxDepth > 0 && Depth(p) > lim.MaxDepth {
			exp.DepthLimited = true
			continue
		}
		if lim.MaxMatches > 0 && len(exp.Matches) >= lim.MaxMatches {
			exp.Truncated = true
			break
		}
		exp.Matches = append(exp.Matches, p)
	}
	return exp, nil
}
