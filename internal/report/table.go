// Package report assembles a job's observed series, calculated series and
// contribution tensor into one table and writes it to CSV, Arrow IPC or
// InfluxDB line protocol.
package report

import (
	"fmt"
	"strconv"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/contrib"
	"github.com/nvandessel/atnsim/internal/timeseries"
)

// RowKind tells what a row holds.
type RowKind string

const (
	RowObserved     RowKind = "sim"
	RowCalculated   RowKind = "calc"
	RowContribution RowKind = "contrib"
	RowOther        RowKind = "other"
)

// Row is one labeled series. Only Values[:Valid] carry data; later cells
// were never computed.
type Row struct {
	Label  string
	Kind   RowKind
	I, J   int
	Values []float64
	Valid  int
}

// Table is a header plus labeled rows of equal width.
type Table struct {
	HeaderLabel string
	Header      []string
	Rows        []Row
}

// Width returns the number of value columns.
func (t *Table) Width() int { return len(t.Header) }

// Assemble builds the job table: a header of timestep indices, then for
// each species its observed row, its calculated row and one contribution
// row per partner (self included).
//
// computed is the last timestep index holding a calculated value. Calculated
// rows are valid through computed; contribution rows through slot
// computed-1. Contributions are multiplied by scale to raw biomass units.
func Assemble(nodes []int, eco *timeseries.Ecosystem, tensor *contrib.Tensor, computed int, scale float64) (*Table, error) {
	steps := eco.Observed.Steps()
	if tensor != nil && tensor.Size() != len(nodes) {
		return nil, fmt.Errorf("contribution tensor is %dx%d for %d species", tensor.Size(), tensor.Size(), len(nodes))
	}
	if computed >= steps {
		computed = steps - 1
	}

	t := &Table{
		HeaderLabel: constants.HeaderLabel,
		Header:      make([]string, steps),
	}
	for i := range t.Header {
		t.Header[i] = strconv.Itoa(i)
	}

	for i, id := range nodes {
		obs, ok := eco.Observed.Series(id)
		if !ok {
			return nil, fmt.Errorf("no observed series for species %d", id)
		}
		calc, _ := eco.Calculated.Series(id)
		t.Rows = append(t.Rows,
			Row{Label: fmt.Sprintf(constants.ObservedRowFormat, id), Kind: RowObserved, I: id, J: -1, Values: obs, Valid: steps},
			Row{Label: fmt.Sprintf(constants.CalculatedRowFormat, id), Kind: RowCalculated, I: id, J: -1, Values: calc, Valid: computed + 1},
		)
		if tensor == nil {
			continue
		}
		for j, other := range nodes {
			vals := make([]float64, steps)
			for ts := 0; ts < steps && ts < tensor.Steps(); ts++ {
				vals[ts] = tensor.At(ts, i, j) * scale
			}
			t.Rows = append(t.Rows, Row{
				Label:  fmt.Sprintf(constants.ContributionRowFormat, id, other),
				Kind:   RowContribution,
				I:      id,
				J:      other,
				Values: vals,
				Valid:  computed,
			})
		}
	}
	return t, nil
}

// Row returns the first row with the given label.
func (t *Table) Row(label string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Label == label {
			return r, true
		}
	}
	return Row{}, false
}
