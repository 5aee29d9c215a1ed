package routing

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what happens when a source is routed more than once.
type DuplicatePolicy int

const (
	// DuplicateReject fails table construction on a repeated source.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateLastWins keeps the last declaration and discards earlier ones.
	DuplicateLastWins
)

// ParseDuplicatePolicy maps a config value to a policy. Empty means reject.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return DuplicateReject, true
	case "last_wins":
		return DuplicateLastWins, true
	}
	return DuplicateReject, false
}

// Route maps one source to the targets its matching messages go to.
type Route struct {
	Source  int64   `json:"source"`
	Targets []int64 `json:"targets"`
}

// DuplicateError reports a source declared more than once under DuplicateReject.
type DuplicateError struct {
	Source int64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("source %d is routed more than once", e.Source)
}

// Table is an immutable source -> targets lookup.
type Table struct {
	routes map[int64][]int64
	order  []int64
}

// NewTable builds a Table from routes in declaration order.
func NewTable(routes []Route, policy DuplicatePolicy) (*Table, error) {
	t := &Table{routes: make(map[int64][]int64, len(routes))}

	for _, r := range routes {
		if len(r.Targets) == 0 {
			return nil, fmt.Errorf("source %d has no targets", r.Source)
		}
		if _, exists := t.routes[r.Source]; exists {
			if policy == DuplicateReject {
				return nil, &DuplicateError{Source: r.Source}
			}
		} else {
			t.order = append(t.order, r.Source)
		}
		targets := make([]int64, len(r.Targets))
		copy(targets, r.Targets)
		t.routes[r.Source] = targets
	}

	return t, nil
}

// Lookup returns the targets for source in configured order, or nil if the
// source has no route. The returned slice is a copy.
func (t *Table) Lookup(source int64) []int64 {
	targets, ok := t.routes[source]
	if !ok {
		return nil
	}
	out := make([]int64, len(targets))
	copy(out, targets)
	return out
}

// Routes returns every route in first-declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.order))
	for _, src := range t.order {
		out = append(out, Route{Source: src, Targets: t.Lookup(src)})
	}
	return out
}

// Chats returns every source and target id in the table, deduplicated.
func (t *Table) Chats() []int64 {
	seen := make(map[int64]bool)
	var out []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, src := range t.order {
		add(src)
		for _, dst := range t.routes[src] {
			add(dst)
		}
	}
	return out
}
