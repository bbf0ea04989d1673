package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultWidth is the fixed cell width of numeric CSV cells.
const DefaultWidth = 9

// WriteCSV writes the table as comma-separated text. Numeric cells are
// right-aligned to DefaultWidth with precision decimals; cells that were
// never computed are left empty. Cells are written unquoted so the padding
// survives.
func WriteCSV(w io.Writer, t *Table, precision int) error {
	header := make([]string, 0, t.Width()+1)
	header = append(header, t.HeaderLabel)
	header = append(header, t.Header...)
	if _, err := fmt.Fprintln(w, strings.Join(header, ",")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range t.Rows {
		rec := make([]string, 0, len(r.Values)+1)
		rec = append(rec, r.Label)
		for i, v := range r.Values {
			if i >= r.Valid {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, formatCell(v, precision))
		}
		if _, err := fmt.Fprintln(w, strings.Join(rec, ",")); err != nil {
			return fmt.Errorf("write row %s: %w", r.Label, err)
		}
	}
	return nil
}

func formatCell(v float64, precision int) string {
	return fmt.Sprintf("%*s", DefaultWidth, strconv.FormatFloat(v, 'f', precision, 64))
}
