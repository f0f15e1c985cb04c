package saga

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Transition is one (source, status) pair of the routing graph.
type Transition struct {
	Source Source
	Status Status
}

func (t Transition) String() string {
	return string(t.Source) + "/" + string(t.Status)
}

// RouteTable is an explicit finite mapping from transition to destination topic.
type RouteTable map[Transition]string

// Lookup returns the destination for (source, status) or ErrNoRoute.
func (rt RouteTable) Lookup(source Source, status Status) (string, error) {
	topic, ok := rt[Transition{Source: source, Status: status}]
	if !ok || topic == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrNoRoute, source, status)
	}
	return topic, nil
}

// Validate checks that every pair of sources x statuses has a non-empty destination.
func (rt RouteTable) Validate(sources []Source, statuses []Status) error {
	var missing []string
	for _, src := range sources {
		for _, st := range statuses {
			if topic := rt[Transition{Source: src, Status: st}]; topic == "" {
				missing = append(missing, src.String()+"/"+string(st))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteRoutes, strings.Join(missing, ", "))
	}
	return nil
}

// Entries returns the table sorted by source then status, for printing.
func (rt RouteTable) Entries() []Route {
	out := make([]Route, 0, len(rt))
	for tr, topic := range rt {
		out = append(out, Route{Source: tr.Source, Status: tr.Status, Destination: topic})
	}
	slices.SortFunc(out, func(a, b Route) int {
		if c := strings.Compare(string(a.Source), string(b.Source)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Status), string(b.Status))
	})
	return out
}

type Route struct {
	Source      Source `json:"source"`
	Status      Status `json:"status"`
	Destination string `json:"destination"`
}

func (s Source) String() string {
	return string(s)
}

// Union merges per-service tables. Conflicting destinations for one pair are an error.
func Union(tables ...RouteTable) (RouteTable, error) {
	out := RouteTable{}
	for _, t := range tables {
		for tr, topic := range t {
			if existing, ok := out[tr]; ok && existing != topic {
				return nil, fmt.Errorf("%w: %s routes to both %q and %q", ErrIncompleteRoutes, tr, existing, topic)
			}
			out[tr] = topic
		}
	}
	return out, nil
}

// Equal reports whether two tables describe the same transition graph.
func (rt RouteTable) Equal(other RouteTable) bool {
	return maps.Equal(rt, other)
}

// DefaultRoutes builds the centralized table for the forward order in Steps:
//   - SUCCESS moves to the next step's start topic, the last step to finish-success;
//   - FAIL starts the rollback on the failing step's own compensation topic;
//   - ROLLBACK_PENDING moves to the previous step's compensation topic, the first
//     step to finish-fail.
func DefaultRoutes(t Topics) RouteTable {
	rt := RouteTable{}
	rt.add(SourceOrder, t, nil)
	for i := range Steps {
		rt.add(Steps[i], t, Steps[:i])
	}
	return rt
}

// ServiceRoutes is the slice of DefaultRoutes that one service decides on its
// own in the choreographed topology.
func ServiceRoutes(source Source, t Topics) RouteTable {
	rt := RouteTable{}
	idx := slices.Index(Steps, source)
	if source == SourceOrder {
		rt.add(SourceOrder, t, nil)
		return rt
	}
	if idx < 0 {
		return rt
	}
	rt.add(source, t, Steps[:idx])
	return rt
}

func (rt RouteTable) add(source Source, t Topics, before []Source) {
	var next string
	if source == SourceOrder {
		next = t.Start(Steps[0])
	} else {
		idx := slices.Index(Steps, source)
		if idx == len(Steps)-1 {
			next = t.FinishSuccess
		} else {
			next = t.Start(Steps[idx+1])
		}
	}
	rt[Transition{source, StatusSuccess}] = next

	if source == SourceOrder {
		// The order service never fails after creation; any such signal ends the saga.
		rt[Transition{source, StatusFail}] = t.FinishFail
		rt[Transition{source, StatusRollbackPending}] = t.FinishFail
		return
	}

	rt[Transition{source, StatusFail}] = t.Fail(source)
	if len(before) == 0 {
		rt[Transition{source, StatusRollbackPending}] = t.FinishFail
	} else {
		rt[Transition{source, StatusRollbackPending}] = t.Fail(before[len(before)-1])
	}
}
