// Package foodweb holds the ecosystem relationship graph: for every ordered
// pair of species in a job, the relationship label, the trophic distance and
// the number of distinct feeding paths connecting them.
package foodweb

import (
	"sort"

	"github.com/nvandessel/atnsim/internal/constants"
)

// Entry is the relationship of Source to Target.
type Entry struct {
	Source    int             `json:"source"`
	Target    int             `json:"target"`
	Label     constants.Label `json:"label"`
	Distance  int             `json:"distance"`
	PathCount int             `json:"path_count"`
}

// Graph stores one Entry per ordered pair of distinct species, keyed by the
// source species id. Self-relationships are never stored.
type Graph struct {
	nodes   []int
	entries map[int]map[int]Entry
}

// NewGraph creates an empty graph over the given species ids.
// The ids are copied and sorted ascending.
func NewGraph(nodes []int) *Graph {
	sorted := append([]int(nil), nodes...)
	sort.Ints(sorted)
	return &Graph{
		nodes:   sorted,
		entries: make(map[int]map[int]Entry, len(sorted)),
	}
}

// Add inserts or replaces the entry for (e.Source, e.Target). Entries with
// equal source and target are ignored.
func (g *Graph) Add(e Entry) {
	if e.Source == e.Target {
		return
	}
	row, ok := g.entries[e.Source]
	if !ok {
		row = make(map[int]Entry)
		g.entries[e.Source] = row
	}
	row[e.Target] = e
}

// Lookup returns the entry for (source, target).
func (g *Graph) Lookup(source, target int) (Entry, bool) {
	e, ok := g.entries[source][target]
	return e, ok
}

// Nodes returns the sorted species ids.
func (g *Graph) Nodes() []int {
	return append([]int(nil), g.nodes...)
}

// Len returns the number of stored directed entries.
func (g *Graph) Len() int {
	n := 0
	for _, row := range g.entries {
		n += len(row)
	}
	return n
}

// Relationships returns every entry with the given source, ordered by target.
func (g *Graph) Relationships(source int) []Entry {
	row := g.entries[source]
	out := make([]Entry, 0, len(row))
	for _, e := range row {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Feeds reports whether predator directly consumes prey. Only entries with a
// predator label and at least one path couple two species.
func (g *Graph) Feeds(predator, prey int) bool {
	e, ok := g.Lookup(predator, prey)
	return ok && e.Label.Eats() && e.PathCount > 0
}

// PreyOf returns the species predator directly consumes, ascending.
func (g *Graph) PreyOf(predator int) []int {
	out := make([]int, 0)
	for _, e := range g.Relationships(predator) {
		if e.Label.Eats() && e.PathCount > 0 {
			out = append(out, e.Target)
		}
	}
	return out
}

// PredatorsOf returns the species that directly consume prey, ascending.
func (g *Graph) PredatorsOf(prey int) []int {
	out := make([]int, 0)
	for _, id := range g.nodes {
		if g.Feeds(id, prey) {
			out = append(out, id)
		}
	}
	return out
}

// IsProducer reports whether the species consumes nothing in this web.
func (g *Graph) IsProducer(id int) bool {
	return len(g.PreyOf(id)) == 0
}
