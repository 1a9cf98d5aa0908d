// Package pattern compiles and evaluates the engine's path-pattern
// grammar (spec section 4.2): comma-separated terms, "**" spanning any
// number of path segments, "*" spanning characters within one segment,
// and implicit "/**/ " anchoring for terms without a leading slash.
//
// The compiled Pattern supports both whole-path matching and cursor
// matching against a tree walk in progress, so callers like find/history
// can prune subtrees that can no longer match anything.
package pattern

import (
	"regexp"
	"strings"
)

// segment is one path-pattern segment: either the literal "**" wildcard
// (doubleStar) or a single-segment glob compiled to a regexp.
type segment struct {
	doubleStar bool
	re         *regexp.Regexp // nil when doubleStar
}

func (s segment) matches(part string) bool {
	if s.doubleStar {
		return false // ** never matches via direct comparison, only via the NFA walk
	}
	return s.re.MatchString(part)
}

// term is one compiled comma-separated pattern term.
type term struct {
	raw        string
	segments   []segment
	matchesAll bool // true for "/**" and equivalent single-** terms
}

// Pattern is a compiled, immutable path-pattern expression. The zero value
// is not usable; construct with Compile.
type Pattern struct {
	raw   string
	terms []term
}

// String returns the raw pattern text the Pattern was compiled from.
func (p *Pattern) String() string { return p.raw }

// MatchesAll reports whether the pattern trivially accepts every path,
// letting callers short-circuit a full tree walk (spec section 4.2).
func (p *Pattern) MatchesAll() bool {
	for _, t := range p.terms {
		if t.matchesAll {
			return true
		}
	}
	return false
}

// Compile parses a comma-separated pattern expression. Each term is
// anchored: a term without a leading "/" is treated as "/**/"+term.
func Compile(expr string) (*Pattern, error) {
	p := &Pattern{raw: expr}
	for _, raw := range splitTerms(expr) {
		t, err := compileTerm(raw)
		if err != nil {
			return nil, err
		}
		p.terms = append(p.terms, t)
	}
	if len(p.terms) == 0 {
		// An empty pattern matches nothing, the safe conservative default.
		return p, nil
	}
	return p, nil
}

// MustCompile is Compile, panicking on a malformed expression; used for
// pattern literals supplied by code, not untrusted callers.
func MustCompile(expr string) *Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func splitTerms(expr string) []string {
	parts := strings.Split(expr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func compileTerm(raw string) (term, error) {
	anchored := raw
	if !strings.HasPrefix(anchored, "/") {
		anchored = "/**/" + anchored
	}
	anchored = strings.TrimPrefix(anchored, "/")
	parts := strings.Split(anchored, "/")

	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		if part == "**" {
			segs = append(segs, segment{doubleStar: true})
			continue
		}
		re, err := compileSegmentGlob(part)
		if err != nil {
			return term{}, err
		}
		segs = append(segs, segment{re: re})
	}

	t := term{raw: raw, segments: segs}
	if len(segs) == 1 && segs[0].doubleStar {
		t.matchesAll = true
	}
	return t, nil
}

// compileSegmentGlob turns a single path segment containing "*" wildcards
// into an anchored regexp that never crosses a "/".
func compileSegmentGlob(part string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range part {
		switch r {
		case '*':
			b.WriteString("[^/]*")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Match reports whether the absolute path matches the pattern.
func (p *Pattern) Match(path string) bool {
	parts := splitPath(path)
	for _, t := range p.terms {
		if t.matchesAll {
			return true
		}
		if matchesExact(t.segments, parts) {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchesExact(segs []segment, parts []string) bool {
	states := closure(initial(), segs)
	for _, part := range parts {
		states = step(states, segs, part)
		if len(states) == 0 {
			return false
		}
	}
	return states[len(segs)]
}

// --- cursor matching -------------------------------------------------

// Cursor tracks, for each term, the set of live NFA states reached after
// consuming the path segments seen so far during a tree walk. A fresh
// Cursor represents the repository root.
type Cursor struct {
	p      *Pattern
	states []map[int]bool // per-term
}

// NewCursor starts a cursor at the root of the tree.
func (p *Pattern) NewCursor() *Cursor {
	c := &Cursor{p: p, states: make([]map[int]bool, len(p.terms))}
	for i, t := range p.terms {
		if t.matchesAll {
			c.states[i] = nil // sentinel: always-final, handled in Matches/CanDescend
			continue
		}
		c.states[i] = closure(initial(), t.segments)
	}
	return c
}

// Descend returns a new cursor positioned after consuming one more path
// segment (e.g. entering a child directory or reaching a file name).
func (c *Cursor) Descend(seg string) *Cursor {
	next := &Cursor{p: c.p, states: make([]map[int]bool, len(c.states))}
	for i, t := range c.p.terms {
		if t.matchesAll {
			next.states[i] = nil
			continue
		}
		next.states[i] = step(c.states[i], t.segments, seg)
	}
	return next
}

// Matches reports whether the path consumed so far is itself a full match.
func (c *Cursor) Matches() bool {
	for i, t := range c.p.terms {
		if t.matchesAll {
			return true
		}
		if c.states[i][len(t.segments)] {
			return true
		}
	}
	return false
}

// CanDescend reports whether some path below the current cursor position
// could still match; false means the caller may prune this subtree.
func (c *Cursor) CanDescend() bool {
	for i, t := range c.p.terms {
		if t.matchesAll {
			return true
		}
		if len(c.states[i]) > 0 {
			return true
		}
	}
	return false
}

// --- NFA helpers for a single term's "**"-bearing segment list --------

func initial() map[int]bool {
	return map[int]bool{0: true}
}

// closure expands doubleStar states to also include the state that
// follows them, since "**" may consume zero segments.
func closure(states map[int]bool, segs []segment) map[int]bool {
	out := make(map[int]bool, len(states))
	for k, v := range states {
		out[k] = v
	}
	for changed := true; changed; {
		changed = false
		for ti := range out {
			if ti < len(segs) && segs[ti].doubleStar && !out[ti+1] {
				out[ti+1] = true
				changed = true
			}
		}
	}
	return out
}

func step(states map[int]bool, segs []segment, part string) map[int]bool {
	next := map[int]bool{}
	for ti := range states {
		if ti >= len(segs) {
			continue
		}
		if segs[ti].doubleStar {
			next[ti] = true // self-loop: ** consumes this segment too
			continue
		}
		if segs[ti].matches(part) {
			next[ti+1] = true
		}
	}
	return closure(next, segs)
}
