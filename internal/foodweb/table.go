package foodweb

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/atnsim/internal/constants"
)

// relationshipSection is the zero-based index of the relationship/distance
// section in a three-section relationship table.
const relationshipSection = 1

// Offset of the first relationship column: node id, then node name.
const relationOffset = 2

// MalformedGraphInputError reports a relationship table that does not match
// the expected triple-block layout.
type MalformedGraphInputError struct {
	Row    int
	Column int
	Reason string
	Err    error
}

func (e *MalformedGraphInputError) Error() string {
	msg := fmt.Sprintf("malformed relationship table at row %d", e.Row)
	if e.Column >= 0 {
		msg += fmt.Sprintf(" column %d", e.Column)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedGraphInputError) Unwrap() error {
	return e.Err
}

// BuildGraph constructs the relationship graph from parsed table rows.
//
// The table has three sections separated by blank rows; only section 1 is
// read. Its first row is a header. Each data row holds the source species
// id, a name column, then three blocks of len(nodes) columns: relationship
// labels, distances and path counts, with columns ordered by ascending
// species id. Every job species must have exactly one row and no row may
// name a species outside nodes.
func BuildGraph(rows [][]string, nodes []int) (*Graph, error) {
	g := NewGraph(nodes)
	sorted := g.nodes
	n := len(sorted)
	distOffset := relationOffset + n
	pathOffset := distOffset + n
	width := pathOffset + n

	member := make(map[int]bool, n)
	for _, id := range sorted {
		member[id] = true
	}
	seen := make(map[int]int, n)

	section := 0
	blank := false
	header := true
	for idx, row := range rows {
		if isBlankRow(row) {
			// A run of blank rows is a single boundary.
			if blank {
				continue
			}
			blank = true
			header = true
			section++
			if section > 2 {
				break
			}
			continue
		}
		blank = false

		if section != relationshipSection {
			continue
		}
		if header {
			header = false
			continue
		}

		if len(row) < width {
			return nil, &MalformedGraphInputError{
				Row:    idx,
				Column: -1,
				Reason: fmt.Sprintf("expected at least %d columns for %d species, got %d", width, n, len(row)),
			}
		}

		source, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, &MalformedGraphInputError{Row: idx, Column: 0, Reason: "source species id", Err: err}
		}
		if !member[source] {
			return nil, &MalformedGraphInputError{Row: idx, Column: 0, Reason: fmt.Sprintf("source species %d is not a job species", source)}
		}
		if prev, dup := seen[source]; dup {
			return nil, &MalformedGraphInputError{Row: idx, Column: 0, Reason: fmt.Sprintf("duplicate row for species %d, first at row %d", source, prev)}
		}
		seen[source] = idx

		for i, target := range sorted {
			dist, err := strconv.Atoi(strings.TrimSpace(row[distOffset+i]))
			if err != nil {
				return nil, &MalformedGraphInputError{Row: idx, Column: distOffset + i, Reason: "distance", Err: err}
			}
			paths, err := strconv.Atoi(strings.TrimSpace(row[pathOffset+i]))
			if err != nil {
				return nil, &MalformedGraphInputError{Row: idx, Column: pathOffset + i, Reason: "path count", Err: err}
			}
			if dist < 0 || paths < 0 {
				return nil, &MalformedGraphInputError{Row: idx, Column: distOffset + i, Reason: "negative distance or path count"}
			}
			g.Add(Entry{
				Source:    source,
				Target:    target,
				Label:     constants.Label(strings.TrimSpace(row[relationOffset+i])),
				Distance:  dist,
				PathCount: paths,
			})
		}
	}
	for _, id := range sorted {
		if _, ok := seen[id]; !ok {
			return nil, &MalformedGraphInputError{Row: len(rows), Column: -1, Reason: fmt.Sprintf("no relationship row for species %d", id)}
		}
	}
	return g, nil
}

func isBlankRow(row []string) bool {
	return len(row) == 0 || strings.TrimSpace(row[0]) == ""
}

// ParseTable splits comma-separated text into rows. Blank lines are kept as
// single-cell empty rows so that section boundaries survive parsing.
func ParseTable(text string) ([][]string, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	rows := make([][]string, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			rows = append(rows, []string{""})
			continue
		}
		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		rec, err := r.Read()
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", i+1, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
