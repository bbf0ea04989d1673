package report

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Schema returns the Arrow schema for a table: label, kind and species
// columns followed by one nullable float64 column per header entry.
func Schema(t *Table) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "label", Type: arrow.BinaryTypes.String},
		{Name: "kind", Type: arrow.BinaryTypes.String},
		{Name: "i", Type: arrow.PrimitiveTypes.Int64},
		{Name: "j", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}
	for _, h := range t.Header {
		fields = append(fields, arrow.Field{Name: h, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// WriteArrow writes the table as a single-record Arrow IPC file.
func WriteArrow(w io.Writer, t *Table) error {
	mem := memory.NewGoAllocator()
	schema := Schema(t)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	labels := b.Field(0).(*array.StringBuilder)
	kinds := b.Field(1).(*array.StringBuilder)
	is := b.Field(2).(*array.Int64Builder)
	js := b.Field(3).(*array.Int64Builder)
	for _, r := range t.Rows {
		labels.Append(r.Label)
		kinds.Append(string(r.Kind))
		is.Append(int64(r.I))
		if r.Kind == RowContribution {
			js.Append(int64(r.J))
		} else {
			js.AppendNull()
		}
		for c := 0; c < t.Width(); c++ {
			fb := b.Field(4 + c).(*array.Float64Builder)
			if c < r.Valid && c < len(r.Values) {
				fb.Append(r.Values[c])
			} else {
				fb.AppendNull()
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}
