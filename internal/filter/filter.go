// Package filter implements keyword and stop-word matching over message text.
//
// All matching is literal, case-insensitive substring containment. Patterns are
// lower-cased once when a Group or SourceFilter is built, and message text is
// expected to go through Normalize exactly once before any Match call.
package filter

import "strings"

// Mode selects how a Group's keywords decide a match.
type Mode int

const (
	// MatchNone never matches. A group with no keywords is always MatchNone.
	MatchNone Mode = iota
	// MatchAny matches when the text contains at least one keyword.
	MatchAny
	// MatchAll matches when the text contains every keyword.
	MatchAll
)

func (m Mode) String() string {
	switch m {
	case MatchAny:
		return "any"
	case MatchAll:
		return "all"
	default:
		return "none"
	}
}

// ParseMode maps a config value to a Mode. The empty string means "any".
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return MatchAny, true
	case "all":
		return MatchAll, true
	case "none":
		return MatchNone, true
	}
	return MatchNone, false
}

// Normalize lower-cases and trims message text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// ContainsAny reports whether text contains any of patterns. An empty pattern
// list never matches.
func ContainsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether text contains every pattern. An empty pattern
// list never matches.
func ContainsAll(text string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

// Group is a keyword filter scoped to a set of sources.
type Group struct {
	Name     string
	Mode     Mode
	Keywords []string
	sources  map[int64]struct{}
}

// NewGroup builds a Group. Empty keywords are dropped, and a group left with
// no keywords is forced to MatchNone whatever mode was asked for.
func NewGroup(name string, sources []int64, mode Mode, keywords []string) Group {
	g := Group{
		Name:     name,
		Mode:     mode,
		Keywords: lowerAll(keywords),
		sources:  make(map[int64]struct{}, len(sources)),
	}
	for _, id := range sources {
		g.sources[id] = struct{}{}
	}
	if len(g.Keywords) == 0 {
		g.Mode = MatchNone
	}
	return g
}

// Covers reports whether source is in the group's scope.
func (g Group) Covers(source int64) bool {
	_, ok := g.sources[source]
	return ok
}

// Sources returns the group's scope in no particular order.
func (g Group) Sources() []int64 {
	out := make([]int64, 0, len(g.sources))
	for id := range g.sources {
		out = append(out, id)
	}
	return out
}

// Match evaluates the group against already normalized text.
func (g Group) Match(normalized string) bool {
	switch g.Mode {
	case MatchAny:
		return ContainsAny(normalized, g.Keywords)
	case MatchAll:
		return ContainsAll(normalized, g.Keywords)
	default:
		return false
	}
}

// SourceFilter holds the stop-words of one source.
type SourceFilter struct {
	SourceID  int64
	Stopwords []string
}

func NewSourceFilter(source int64, stopwords []string) SourceFilter {
	return SourceFilter{SourceID: source, Stopwords: lowerAll(stopwords)}
}

// Stopped reports whether normalized text contains any stop-word.
func (f SourceFilter) Stopped(normalized string) bool {
	return ContainsAny(normalized, f.Stopwords)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
