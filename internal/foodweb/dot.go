package foodweb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvandessel/atnsim/internal/constants"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// edgeStyles maps relationship labels to DOT styles. Only direct feeding
// links are drawn by default.
var edgeStyles = map[constants.Label]string{
	constants.LabelPredator:         "solid",
	constants.LabelIndirectPredator: "dashed",
}

// RenderDOT produces a Graphviz DOT representation of the food web. Edges
// point from prey to predator, following the flow of biomass. Indirect links
// are included when indirect is set.
func RenderDOT(g *Graph, names map[int]string, indirect bool) string {
	var b strings.Builder
	b.WriteString("digraph foodweb {\n")
	b.WriteString("  rankdir=BT;\n")
	b.WriteString("  node [shape=ellipse, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for _, id := range g.Nodes() {
		label := names[id]
		if label == "" {
			label = fmt.Sprintf("node %d", id)
		}
		color := "lightsalmon"
		if g.IsProducer(id) {
			color = "palegreen"
		}
		fmt.Fprintf(&b, "  \"%d\" [label=%q, fillcolor=%q];\n", id, label, color)
	}
	b.WriteString("\n")

	for _, pred := range g.Nodes() {
		for _, e := range g.Relationships(pred) {
			if e.PathCount == 0 {
				continue
			}
			if !e.Label.Eats() && !(indirect && e.Label == constants.LabelIndirectPredator) {
				continue
			}
			fmt.Fprintf(&b, "  \"%d\" -> \"%d\" [style=%s, tooltip=\"distance=%d paths=%d\"];\n",
				e.Target, pred, edgeStyles[e.Label], e.Distance, e.PathCount)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON document with nodes and direct feeding links.
func RenderJSON(g *Graph, names map[int]string) ([]byte, error) {
	type jsonNode struct {
		ID       int    `json:"id"`
		Name     string `json:"name,omitempty"`
		Producer bool   `json:"producer"`
	}
	type jsonEdge struct {
		Predator  int `json:"predator"`
		Prey      int `json:"prey"`
		PathCount int `json:"path_count"`
	}

	nodes := make([]jsonNode, 0, g.Len())
	var edges []jsonEdge
	for _, id := range g.Nodes() {
		nodes = append(nodes, jsonNode{ID: id, Name: names[id], Producer: g.IsProducer(id)})
		for _, prey := range g.PreyOf(id) {
			e, _ := g.Lookup(id, prey)
			edges = append(edges, jsonEdge{Predator: id, Prey: prey, PathCount: e.PathCount})
		}
	}

	data, err := json.MarshalIndent(map[string]interface{}{
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return data, nil
}
