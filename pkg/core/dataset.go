package core

import "fmt"

// Row is a single record inside one run's Bronze dataset. Values are typed:
// nil, string, int64, float64 or bool. The ID is stable and unique within
// the run that produced the row; rows are never shared across runs.
type Row struct {
	ID     string
	Values map[string]any
}

// Value returns the row's value for field, or nil when absent.
func (r Row) Value(field string) any { return r.Values[field] }

// Dataset is an ordered record set produced by the Bronze layer. Columns
// preserves the field order of the input so reporting stays deterministic.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Select returns a new Dataset sharing d's columns and containing the rows at
// the given indexes, in the given order.
func (d *Dataset) Select(indexes []int) *Dataset {
	out := &Dataset{Columns: d.Columns, Rows: make([]Row, 0, len(indexes))}
	for _, i := range indexes {
		out.Rows = append(out.Rows, d.Rows[i])
	}
	return out
}

// RowID formats the stable identifier for the i-th row of a run's dataset.
func RowID(i int) string { return fmt.Sprintf("row-%06d", i+1) }
