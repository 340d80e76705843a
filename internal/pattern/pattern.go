// Package pattern matches scan-relative file paths against the three pattern
// classes the assemblers use: literal names, single-wildcard names or
// segments, and general globs.
package pattern

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrMalformedPattern is returned when a glob pattern cannot be compiled.
var ErrMalformedPattern = errors.New("malformed pattern")

// Class is the pattern class, tried in this order.
type Class int

const (
	Literal Class = iota
	SingleWildcard
	Glob
)

func (c Class) String() string {
	switch c {
	case Literal:
		return "literal"
	case SingleWildcard:
		return "single-wildcard"
	default:
		return "glob"
	}
}

const globMeta = "*?[]{}"

// Classify returns the class of pattern.
func Classify(pattern string) Class {
	pattern = normalize(pattern)
	if !strings.ContainsAny(pattern, globMeta) {
		return Literal
	}
	if strings.ContainsAny(pattern, "?[]{}") || strings.Contains(pattern, "**") {
		return Glob
	}
	if !strings.Contains(pattern, "/") {
		if strings.Count(pattern, "*") == 1 &&
			(strings.HasPrefix(pattern, "*") || strings.HasSuffix(pattern, "*")) {
			return SingleWildcard
		}
		return Glob
	}
	wild := 0
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "*" {
			wild++
			continue
		}
		if strings.Contains(seg, "*") {
			return Glob
		}
	}
	if wild == 1 {
		return SingleWildcard
	}
	return Glob
}

// Matcher matches paths against patterns, caching compiled globs. The zero
// value is not usable; use NewMatcher. A Matcher is safe for concurrent use.
type Matcher struct {
	globs *xsync.MapOf[string, compiled]
}

type compiled struct {
	g   glob.Glob
	err error
}

// NewMatcher returns an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{globs: xsync.NewMapOf[string, compiled]()}
}

// Match reports whether the scan-relative path p matches pattern. Literal and
// single-wildcard patterns without a "/" compare against the base name,
// ignoring case. Patterns with a "/" and globs are anchored at the scan root.
func (m *Matcher) Match(p, pattern string) (bool, error) {
	p, pattern = normalize(p), normalize(pattern)
	if p == "" || pattern == "" {
		return false, nil
	}

	switch Classify(pattern) {
	case Literal:
		if !strings.Contains(pattern, "/") {
			return strings.EqualFold(path.Base(p), pattern), nil
		}
		return p == pattern, nil
	case SingleWildcard:
		if !strings.Contains(pattern, "/") {
			return matchNameWildcard(path.Base(p), pattern), nil
		}
		return matchSegments(p, pattern), nil
	default:
		return m.matchGlob(p, pattern)
	}
}

// MatchAnchored is Match with every class anchored at the scan root: a
// literal must equal the whole path and "*" never crosses a "/". Workspace
// member declarations use this form.
func (m *Matcher) MatchAnchored(p, pattern string) (bool, error) {
	p, pattern = normalize(p), normalize(pattern)
	if p == "" || pattern == "" {
		return false, nil
	}
	if Classify(pattern) == Literal {
		return p == pattern, nil
	}
	return m.matchGlob(p, pattern)
}

// Validate reports whether pattern compiles.
func (m *Matcher) Validate(pattern string) error {
	pattern = normalize(pattern)
	if Classify(pattern) != Glob {
		return nil
	}
	_, err := m.compile(pattern)
	return err
}

func (m *Matcher) matchGlob(p, pattern string) (bool, error) {
	g, err := m.compile(pattern)
	if err != nil {
		return false, err
	}
	if g.Match(p) {
		return true, nil
	}
	// "**/x" also matches "x" at the root.
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok && rest != "" {
		if Classify(rest) == Literal {
			return p == rest, nil
		}
		return m.matchGlob(p, rest)
	}
	return false, nil
}

func (m *Matcher) compile(pattern string) (glob.Glob, error) {
	c, _ := m.globs.LoadOrCompute(pattern, func() compiled {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			err = fmt.Errorf("%w %q: %v", ErrMalformedPattern, pattern, err)
		}
		return compiled{g: g, err: err}
	})
	return c.g, c.err
}

func matchNameWildcard(name, pattern string) bool {
	name, pattern = strings.ToLower(name), strings.ToLower(pattern)
	if pattern == "*" {
		return name != ""
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return len(name) > len(suffix) && strings.HasSuffix(name, suffix)
	}
	prefix := strings.TrimSuffix(pattern, "*")
	return len(name) > len(prefix) && strings.HasPrefix(name, prefix)
}

func matchSegments(p, pattern string) bool {
	ps := strings.Split(p, "/")
	pats := strings.Split(pattern, "/")
	if len(ps) != len(pats) {
		return false
	}
	for i, seg := range pats {
		if seg == "*" {
			if ps[i] == "" {
				return false
			}
			continue
		}
		if seg != ps[i] {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	s = strings.TrimPrefix(s, "./")
	s = strings.TrimPrefix(s, "/")
	return strings.TrimSuffix(s, "/")
}

// Depth returns the number of segments in p.
func Depth(p string) int {
	p = normalize(p)
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

var defaultMatcher = NewMatcher()

// Match reports whether p matches pattern using a process-wide matcher.
// Malformed patterns never match.
func Match(p, pattern string) bool {
	ok, err := defaultMatcher.Match(p, pattern)
	return err == nil && ok
}
