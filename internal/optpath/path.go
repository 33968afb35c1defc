// Package optpath defines option paths: the dotted addresses that uniquely
// identify configurable values (e.g. "services.proxy.enable"). Paths are
// totally ordered so iteration over a configuration is deterministic.
package optpath

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Valid path segment: alphanumeric, dash, underscore. Segments never
// contain dots; dots separate segments.
var segmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Path is an ordered sequence of identifiers addressing one option.
// The zero value is the root (empty) path.
type Path []string

// Parse parses a dotted path string like "services.proxy.enable".
func Parse(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("option path cannot be empty")
	}
	segs := strings.Split(s, ".")
	for _, seg := range segs {
		if !segmentRegex.MatchString(seg) {
			return nil, fmt.Errorf("invalid option path %q: segment %q must be alphanumeric with -_", s, seg)
		}
	}
	return Path(segs), nil
}

// MustParse parses a dotted path and panics on error. For tests and
// compile-time-known paths.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// IsRoot reports whether the path is empty.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Child returns the path extended by one segment.
func (p Path) Child(seg string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	out = append(out, seg)
	return out
}

// Parent returns the path without its last segment, and the last segment.
// Calling Parent on the root path returns the root path and "".
func (p Path) Parent() (Path, string) {
	if len(p) == 0 {
		return nil, ""
	}
	return p[:len(p)-1], p[len(p)-1]
}

// Equal reports whether two paths address the same option.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Compare orders paths segment-wise, shorter paths first on ties.
// Returns -1, 0 or 1.
func (p Path) Compare(other Path) int {
	n := len(p)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if p[i] != other[i] {
			if p[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p) < len(other):
		return -1
	case len(p) > len(other):
		return 1
	default:
		return 0
	}
}

// Less reports whether p orders before other.
func (p Path) Less(other Path) bool {
	return p.Compare(other) < 0
}

// Sort sorts paths in place into their total order.
func Sort(paths []Path) {
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Less(paths[j])
	})
}

// SortStrings sorts dotted path strings by their path order (segment-wise),
// not plain lexicographic order, so "a.b" sorts before "a-c.d" consistently
// with Sort.
func SortStrings(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return Path(strings.Split(keys[i], ".")).Less(Path(strings.Split(keys[j], ".")))
	})
}
