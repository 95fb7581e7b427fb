// Package dataset holds the in-memory tables produced by each endpoint fetch
// and the store that shares them between pipeline stages.
package dataset

import (
	"slices"
)

// Record is a single row keyed by column name. Values are scalars:
// string, json number, float64, int64, bool or nil.
type Record map[string]any

// Dataset is an ordered sequence of records with a fixed column schema.
type Dataset struct {
	// Name is the endpoint (or derived table) the rows came from.
	Name string

	// Columns lists the schema in output order.
	Columns []string

	// Rows holds the records. Every row carries a key for every column.
	Rows []Record
}

// New creates an empty dataset with the given columns.
func New(name string, columns []string) *Dataset {
	return &Dataset{
		Name:    name,
		Columns: slices.Clone(columns),
		Rows:    []Record{},
	}
}

// Materialize builds a dataset that exposes exactly columns, in order.
// Keys outside columns are dropped; missing keys are filled with nil.
func Materialize(name string, columns []string, records []Record) *Dataset {
	ds := New(name, columns)
	ds.Rows = make([]Record, 0, len(records))
	for _, rec := range records {
		row := make(Record, len(columns))
		for _, col := range columns {
			row[col] = rec[col]
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether col is part of the schema.
func (d *Dataset) HasColumn(col string) bool {
	return slices.Contains(d.Columns, col)
}

// Column returns the values of col in row order, or nil if the column is absent.
func (d *Dataset) Column(col string) []any {
	if !d.HasColumn(col) {
		return nil
	}
	values := make([]any, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[col]
	}
	return values
}

// Clone returns a copy whose rows can be mutated without touching d.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Name:    d.Name,
		Columns: slices.Clone(d.Columns),
		Rows:    make([]Record, len(d.Rows)),
	}
	for i, row := range d.Rows {
		cp := make(Record, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// RenameColumn renames old to new in place, keeping its position.
// It returns false when old is not a column. An existing column named new
// is replaced.
func (d *Dataset) RenameColumn(old, new string) bool {
	idx := slices.Index(d.Columns, old)
	if idx < 0 {
		return false
	}
	if old == new {
		return true
	}
	if dup := slices.Index(d.Columns, new); dup >= 0 {
		d.Columns = slices.Delete(d.Columns, dup, dup+1)
		if dup < idx {
			idx--
		}
	}
	d.Columns[idx] = new
	for _, row := range d.Rows {
		row[new] = row[old]
		delete(row, old)
	}
	return true
}

// SetColumn replaces the values of col, appending the column if needed.
// values must have one entry per row.
func (d *Dataset) SetColumn(col string, values []any) {
	if !d.HasColumn(col) {
		d.Columns = append(d.Columns, col)
	}
	for i, row := range d.Rows {
		row[col] = values[i]
	}
}
