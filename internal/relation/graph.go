package relation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

// Graph holds the asserted relation edges as an adjacency map keyed by
// owner id. A single lock guards it: relation mutations happen in the
// sequential phases of the tick, concurrent phases only read.
type Graph struct {
	mu    sync.RWMutex
	edges map[string]map[string]Label
	// since records when a lover edge was asserted, keyed like edges.
	since map[string]map[string]calendar.MonthStamp
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		edges: make(map[string]map[string]Label),
		since: make(map[string]map[string]calendar.MonthStamp),
	}
}

// Set asserts that target is `label` to owner, and writes the reciprocal
// edge on the target side. Re-asserting overwrites both directions.
func (g *Graph) Set(owner, target string, label Label, now calendar.MonthStamp) error {
	if owner == target {
		return fmt.Errorf("relation %s: avatar %s cannot relate to itself", label, owner)
	}
	recip, ok := Reciprocal(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	if !Assertable(label) {
		return fmt.Errorf("relation %s is derived and cannot be asserted", label)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.setOne(owner, target, label)
	g.setOne(target, owner, recip)
	if label == Lover {
		g.stampOne(owner, target, now)
		g.stampOne(target, owner, now)
	} else {
		delete(g.since[owner], target)
		delete(g.since[target], owner)
	}
	return nil
}

// Cancel removes the pair's edge in both directions, provided it carries
// the given label on the owner side. A mismatched label refuses and leaves
// the edge alone; a missing edge is a no-op. Innate relations cannot be
// cancelled.
func (g *Graph) Cancel(owner, target string, label Label) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	existing, ok := g.edges[owner][target]
	if !ok {
		return nil
	}
	if existing != label {
		return fmt.Errorf("cancel %s between %s and %s: edge is %s", label, owner, target, existing)
	}
	if IsInnate(existing) {
		return fmt.Errorf("cancel %s between %s and %s: %w", existing, owner, target, ErrInnate)
	}
	g.deleteOne(owner, target)
	g.deleteOne(target, owner)
	return nil
}

// Label returns the asserted label target carries toward owner.
func (g *Graph) Label(owner, target string) (Label, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.edges[owner][target]
	return l, ok
}

// LoverSince returns the month the pair's lover edge was asserted.
func (g *Graph) LoverSince(owner, target string) (calendar.MonthStamp, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.since[owner][target]
	return s, ok
}

// EdgesOf returns a copy of owner's asserted edges.
func (g *Graph) EdgesOf(owner string) map[string]Label {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Label, len(g.edges[owner]))
	for target, l := range g.edges[owner] {
		out[target] = l
	}
	return out
}

// TargetsWith returns the ids that carry the given label toward owner,
// sorted for deterministic iteration.
func (g *Graph) TargetsWith(owner string, label Label) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for target, l := range g.edges[owner] {
		if l == label {
			out = append(out, target)
		}
	}
	sort.Strings(out)
	return out
}

// RemoveAll drops every edge touching id. Used by the long-dead cleanup,
// not by death itself: the living remember their dead.
func (g *Graph) RemoveAll(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for target := range g.edges[id] {
		g.deleteOne(target, id)
	}
	delete(g.edges, id)
	delete(g.since, id)
}

// Derived computes owner's second-degree relations from the asserted edges:
// shared parents make siblings, parents' parents make grandparents, shared
// masters make martial siblings, masters' masters make martial grandmasters.
// Innate asserted edges shadow derived ones; an asserted edge always wins.
func (g *Graph) Derived(owner string) map[string]Label {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]Label)
	add := func(target string, l Label) {
		if target == owner {
			return
		}
		if _, asserted := g.edges[owner][target]; asserted {
			return
		}
		out[target] = l
	}

	for target, l := range g.edges[owner] {
		switch l {
		case Parent:
			// parent's other children are siblings; parent's parents are
			// grandparents
			for second, sl := range g.edges[target] {
				switch sl {
				case Child:
					add(second, Sibling)
				case Parent:
					add(second, GrandParent)
				}
			}
		case Child:
			for second, sl := range g.edges[target] {
				if sl == Child {
					add(second, GrandChild)
				}
			}
		case Master:
			for second, sl := range g.edges[target] {
				switch sl {
				case Disciple:
					add(second, MartialSibling)
				case Master:
					add(second, MartialGrandmaster)
				}
			}
		case Disciple:
			for second, sl := range g.edges[target] {
				if sl == Disciple {
					add(second, MartialGrandchild)
				}
			}
		}
	}
	return out
}

// Snapshot exports every directed edge for persistence.
func (g *Graph) Snapshot() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for owner, targets := range g.edges {
		for target, l := range targets {
			e := Edge{Owner: owner, Target: target, Label: l}
			if s, ok := g.since[owner][target]; ok {
				e.Since = &s
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Restore loads a snapshot, overwriting the graph. Every directed edge must
// have its reciprocal partner in the snapshot; a lopsided or unknown edge
// fails the whole load and leaves the graph untouched.
func (g *Graph) Restore(edges []Edge) error {
	staged := make(map[string]map[string]Label)
	stagedSince := make(map[string]map[string]calendar.MonthStamp)
	for _, e := range edges {
		if staged[e.Owner] == nil {
			staged[e.Owner] = make(map[string]Label)
		}
		staged[e.Owner][e.Target] = e.Label
		if e.Since != nil {
			if stagedSince[e.Owner] == nil {
				stagedSince[e.Owner] = make(map[string]calendar.MonthStamp)
			}
			stagedSince[e.Owner][e.Target] = *e.Since
		}
	}
	for owner, targets := range staged {
		for target, l := range targets {
			recip, ok := Reciprocal(l)
			if !ok {
				return fmt.Errorf("restore relations: %w: %q", ErrUnknownLabel, l)
			}
			if back, ok := staged[target][owner]; !ok || back != recip {
				return fmt.Errorf("restore relations: %s is %s to %s but the reciprocal edge is missing or wrong",
					target, l, owner)
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = staged
	g.since = stagedSince
	return nil
}

// Edge is one directed edge in persisted form.
type Edge struct {
	Owner  string               `json:"owner"`
	Target string               `json:"target"`
	Label  Label                `json:"label"`
	Since  *calendar.MonthStamp `json:"since,omitempty"`
}

func (g *Graph) setOne(owner, target string, l Label) {
	if g.edges[owner] == nil {
		g.edges[owner] = make(map[string]Label)
	}
	g.edges[owner][target] = l
}

func (g *Graph) stampOne(owner, target string, s calendar.MonthStamp) {
	if g.since[owner] == nil {
		g.since[owner] = make(map[string]calendar.MonthStamp)
	}
	g.since[owner][target] = s
}

func (g *Graph) deleteOne(owner, target string) {
	delete(g.edges[owner], target)
	delete(g.since[owner], target)
	if len(g.edges[owner]) == 0 {
		delete(g.edges, owner)
	}
	if len(g.since[owner]) == 0 {
		delete(g.since, owner)
	}
}
