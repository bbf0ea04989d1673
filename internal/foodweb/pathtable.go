package foodweb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/atnsim/internal/constants"
)

// ConsumeMap lists, for each predator species id, the species it eats.
type ConsumeMap map[int][]int

// PathTable is the full relationship table derived from a ConsumeMap.
type PathTable struct {
	nodes   []int
	entries map[int]map[int]Entry
	consume ConsumeMap
}

// BuildPathTable computes the relationship, shortest trophic distance and
// number of distinct simple feeding paths for every ordered pair of nodes.
// Links to species outside nodes are dropped. Paths longer than maxDepth are
// not counted; maxDepth <= 0 uses constants.MaxPathDepth.
func BuildPathTable(consume ConsumeMap, nodes []int, maxDepth int) *PathTable {
	if maxDepth <= 0 {
		maxDepth = constants.MaxPathDepth
	}
	sorted := append([]int(nil), nodes...)
	sort.Ints(sorted)

	present := make(map[int]bool, len(sorted))
	for _, id := range sorted {
		present[id] = true
	}
	eats := make(map[int][]int, len(consume))
	for pred, preys := range consume {
		if !present[pred] {
			continue
		}
		for _, prey := range preys {
			// Cannibalism is a self-relationship and is not stored.
			if present[prey] && prey != pred {
				eats[pred] = append(eats[pred], prey)
			}
		}
		sort.Ints(eats[pred])
	}

	pt := &PathTable{
		nodes:   sorted,
		entries: make(map[int]map[int]Entry, len(sorted)),
		consume: eats,
	}

	reach := make(map[int]map[int]pathStats, len(sorted))
	for _, id := range sorted {
		reach[id] = countPaths(eats, id, maxDepth)
	}
	for _, a := range sorted {
		pt.entries[a] = make(map[int]Entry, len(sorted))
		for _, b := range sorted {
			if a == b {
				continue
			}
			pt.entries[a][b] = classify(a, b, eats, reach[a][b], reach[b][a])
		}
	}
	return pt
}

// pathStats holds the number of simple paths to a target and the length of
// the shortest one.
type pathStats struct {
	count    int
	shortest int
}

// countPaths walks every simple feeding path starting at start.
func countPaths(eats map[int][]int, start, maxDepth int) map[int]pathStats {
	out := make(map[int]pathStats)
	visited := map[int]bool{start: true}

	var walk func(node, depth int)
	walk = func(node, depth int) {
		if depth >= maxDepth {
			return
		}
		for _, next := range eats[node] {
			if visited[next] {
				continue
			}
			st := out[next]
			st.count++
			if st.shortest == 0 || depth+1 < st.shortest {
				st.shortest = depth + 1
			}
			out[next] = st

			visited[next] = true
			walk(next, depth+1)
			visited[next] = false
		}
	}
	walk(start, 0)
	return out
}

func classify(a, b int, eats map[int][]int, down, up pathStats) Entry {
	e := Entry{Source: a, Target: b, Label: constants.LabelNone}
	switch {
	case contains(eats[a], b):
		e.Label, e.Distance, e.PathCount = constants.LabelPredator, 1, down.count
	case contains(eats[b], a):
		e.Label, e.Distance, e.PathCount = constants.LabelPrey, 1, up.count
	case down.count > 0:
		e.Label, e.Distance, e.PathCount = constants.LabelIndirectPredator, down.shortest, down.count
	case up.count > 0:
		e.Label, e.Distance, e.PathCount = constants.LabelIndirectPrey, up.shortest, up.count
	}
	return e
}

func contains(xs []int, v int) bool {
	i := sort.SearchInts(xs, v)
	return i < len(xs) && xs[i] == v
}

// Entry returns the computed relationship of a to b.
func (pt *PathTable) Entry(a, b int) (Entry, bool) {
	e, ok := pt.entries[a][b]
	return e, ok
}

// Graph renders the table and builds a Graph from the rendered text, so that
// generated and stored tables go through the same parser.
func (pt *PathTable) Graph() (*Graph, error) {
	rows, err := ParseTable(pt.String())
	if err != nil {
		return nil, fmt.Errorf("parse path table: %w", err)
	}
	return BuildGraph(rows, pt.nodes)
}

// String renders the table as three comma-separated sections divided by
// blank lines: the consume map, the relationship/distance/path-count block,
// and a per-species path summary.
func (pt *PathTable) String() string {
	var b strings.Builder
	n := len(pt.nodes)

	b.WriteString("predator,prey\n")
	for _, pred := range pt.nodes {
		preys := pt.consume[pred]
		if len(preys) == 0 {
			continue
		}
		parts := make([]string, len(preys))
		for i, p := range preys {
			parts[i] = strconv.Itoa(p)
		}
		fmt.Fprintf(&b, "%d,%s\n", pred, strings.Join(parts, " "))
	}
	b.WriteString("\n")

	header := make([]string, 0, relationOffset+3*n)
	header = append(header, "node", "name")
	for _, block := range []string{"reln", "dist", "paths"} {
		for _, id := range pt.nodes {
			header = append(header, fmt.Sprintf("%s.%d", block, id))
		}
	}
	b.WriteString(strings.Join(header, ","))
	b.WriteString("\n")
	for _, a := range pt.nodes {
		cols := make([]string, relationOffset+3*n)
		cols[0] = strconv.Itoa(a)
		cols[1] = fmt.Sprintf("node%d", a)
		for i, c := range pt.nodes {
			e := pt.entries[a][c]
			if a == c {
				e = Entry{Label: constants.LabelNone}
			}
			cols[relationOffset+i] = e.Label.String()
			cols[relationOffset+n+i] = strconv.Itoa(e.Distance)
			cols[relationOffset+2*n+i] = strconv.Itoa(e.PathCount)
		}
		b.WriteString(strings.Join(cols, ","))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("node,outbound_paths,inbound_paths\n")
	for _, a := range pt.nodes {
		out, in := 0, 0
		for _, c := range pt.nodes {
			if a == c {
				continue
			}
			if e := pt.entries[a][c]; e.Label == constants.LabelPredator || e.Label == constants.LabelIndirectPredator {
				out += e.PathCount
			}
			if e := pt.entries[c][a]; e.Label == constants.LabelPredator || e.Label == constants.LabelIndirectPredator {
				in += e.PathCount
			}
		}
		fmt.Fprintf(&b, "%d,%d,%d\n", a, out, in)
	}
	return b.String()
}
