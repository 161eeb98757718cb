// Package mapping assigns live audio sessions to configured dial bindings.
package mapping

import (
	"fmt"
	"regexp"
)

// Kind identifies which variant a Selector holds.
type Kind int

const (
	KindPattern Kind = iota
	KindCatchAll
)

func (k Kind) String() string {
	switch k {
	case KindPattern:
		return "pattern"
	case KindCatchAll:
		return "catch_all"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Selector decides which sessions belong to a binding. It is either a
// pattern or a catch-all; the zero value is not valid.
type Selector struct {
	kind    Kind
	pattern *regexp.Regexp
}

// PatternSelector matches sessions whose lowercased path contains a match for
// expr anywhere. Matching ignores case.
func PatternSelector(expr string) (Selector, error) {
	if expr == "" {
		return Selector{}, fmt.Errorf("pattern cannot be empty")
	}
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Selector{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Selector{kind: KindPattern, pattern: re}, nil
}

// CatchAllSelector matches every session that reaches it.
func CatchAllSelector() Selector {
	return Selector{kind: KindCatchAll}
}

// Kind returns the selector variant.
func (s Selector) Kind() Kind {
	return s.kind
}

// Pattern returns the expression of a pattern selector, or "" for a catch-all.
func (s Selector) Pattern() string {
	if s.kind != KindPattern || s.pattern == nil {
		return ""
	}
	return s.pattern.String()[len("(?i)"):]
}

// Matches reports whether a lowercased session path is selected.
func (s Selector) Matches(path string) bool {
	switch s.kind {
	case KindPattern:
		return s.pattern != nil && s.pattern.MatchString(path)
	case KindCatchAll:
		return true
	default:
		panic(fmt.Sprintf("mapping: unhandled selector kind %v", s.kind))
	}
}

func (s Selector) String() string {
	switch s.kind {
	case KindPattern:
		return fmt.Sprintf("pattern(%s)", s.Pattern())
	case KindCatchAll:
		return "catch_all"
	default:
		return s.kind.String()
	}
}

// Binding ties a named logical dial to a selector. Bindings are positional:
// binding i is driven by physical dial i.
type Binding struct {
	Name     string
	Selector Selector
}
