package listener

import (
	"fmt"
	"strconv"

	"tgrelay/internal/config"
	"tgrelay/internal/filter"
	"tgrelay/internal/routing"
)

// Rules is the immutable filtering and routing state built once at startup.
type Rules struct {
	subscribed map[int64]struct{}
	stopwords  map[int64]filter.SourceFilter
	groups     []filter.Group
	routes     *routing.Table
}

// NewRules builds Rules from cfg. Under routing.on_duplicate=last_wins a
// repeated source replaces every earlier declaration of it, targets included.
func NewRules(cfg *config.Config) (*Rules, error) {
	policy, ok := routing.ParseDuplicatePolicy(cfg.Routing.OnDuplicate)
	if !ok {
		return nil, fmt.Errorf("unknown duplicate policy %q", cfg.Routing.OnDuplicate)
	}

	last := make(map[int64]int, len(cfg.Sources))
	for i, s := range cfg.Sources {
		last[s.ID] = i
	}

	r := &Rules{
		subscribed: make(map[int64]struct{}),
		stopwords:  make(map[int64]filter.SourceFilter),
	}
	for _, id := range cfg.Subscriptions() {
		r.subscribed[id] = struct{}{}
	}

	var routes []routing.Route
	for i, s := range cfg.Sources {
		if last[s.ID] != i {
			if policy == routing.DuplicateReject {
				return nil, &routing.DuplicateError{Source: s.ID}
			}
			continue
		}

		if len(s.Targets) > 0 {
			routes = append(routes, routing.Route{Source: s.ID, Targets: s.Targets})
		}
		r.stopwords[s.ID] = filter.NewSourceFilter(s.ID, s.Stopwords)

		mode, ok := filter.ParseMode(s.Match)
		if !ok {
			return nil, fmt.Errorf("source %d: unknown match mode %q", s.ID, s.Match)
		}
		name := "source:" + strconv.FormatInt(s.ID, 10)
		r.groups = append(r.groups, filter.NewGroup(name, []int64{s.ID}, mode, s.Keywords))
	}

	for i, f := range cfg.Filters {
		mode, ok := filter.ParseMode(f.Match)
		if !ok {
			return nil, fmt.Errorf("filter %d: unknown match mode %q", i, f.Match)
		}
		name := f.Name
		if name == "" {
			name = "filter:" + strconv.Itoa(i)
		}
		r.groups = append(r.groups, filter.NewGroup(name, f.Sources, mode, f.Keywords))
	}

	table, err := routing.NewTable(routes, policy)
	if err != nil {
		return nil, err
	}
	r.routes = table

	return r, nil
}

func (r *Rules) Subscribed(source int64) bool {
	_, ok := r.subscribed[source]
	return ok
}

func (r *Rules) Routes() *routing.Table {
	return r.routes
}

// Groups returns the filter groups in evaluation order.
func (r *Rules) Groups() []filter.Group {
	out := make([]filter.Group, len(r.groups))
	copy(out, r.groups)
	return out
}
