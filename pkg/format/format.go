// Package format projects the assembled table onto the export columns and
// normalizes dates, booleans and coded values.
package format

import (
	"github.com/Sternrassler/odata-export/pkg/dataset"
)

// Mapping selects one source column and names it in the output.
type Mapping struct {
	Source string `yaml:"source"`
	Label  string `yaml:"label"`
}

// Project keeps the mapped columns present in table, renamed to their
// labels, in mapping order. Absent source columns are skipped. Row order
// and row count are preserved.
func Project(table *dataset.Dataset, mappings []Mapping) *dataset.Dataset {
	kept := make([]Mapping, 0, len(mappings))
	labels := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if table.HasColumn(m.Source) {
			kept = append(kept, m)
			labels = append(labels, m.Label)
		}
	}

	out := dataset.New(table.Name, labels)
	out.Rows = make([]dataset.Record, len(table.Rows))
	for i, row := range table.Rows {
		rec := make(dataset.Record, len(kept))
		for _, m := range kept {
			rec[m.Label] = row[m.Source]
		}
		out.Rows[i] = rec
	}
	return out
}

// Processor rewrites values of named output columns in place.
type Processor interface {
	Process(ds *dataset.Dataset)
}

// Format projects table and runs each processor over the result.
func Format(table *dataset.Dataset, mappings []Mapping, processors ...Processor) *dataset.Dataset {
	out := Project(table, mappings)
	for _, p := range processors {
		p.Process(out)
	}
	return out
}

// mapColumn replaces every value of col using fn, if col exists.
func mapColumn(ds *dataset.Dataset, col string, fn func(any) any) {
	if !ds.HasColumn(col) {
		return
	}
	for _, row := range ds.Rows {
		row[col] = fn(row[col])
	}
}
