package format

import (
	"strings"

	"github.com/Sternrassler/odata-export/pkg/dataset"
)

// ValueMap translates coded values to labels. Lookup keys are trimmed and
// lower-cased; unmapped values become nil.
type ValueMap struct {
	Column string
	Values map[string]string
}

// Process implements Processor.
func (m ValueMap) Process(ds *dataset.Dataset) {
	lookup := make(map[string]string, len(m.Values))
	for k, v := range m.Values {
		lookup[normalizeCode(k)] = v
	}
	mapColumn(ds, m.Column, func(v any) any {
		s, ok := dataset.Stringify(v)
		if !ok {
			return nil
		}
		if label, found := lookup[normalizeCode(s)]; found {
			return label
		}
		return nil
	})
}

func normalizeCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Boolean renders truthy values as "Yes" and falsy ones as "No".
// Anything else becomes nil.
type Boolean struct {
	Columns []string
}

// Process implements Processor.
func (b Boolean) Process(ds *dataset.Dataset) {
	for _, col := range b.Columns {
		mapColumn(ds, col, yesNo)
	}
}

func yesNo(v any) any {
	if bv, ok := v.(bool); ok {
		if bv {
			return "Yes"
		}
		return "No"
	}
	s, ok := dataset.Stringify(v)
	if !ok {
		return nil
	}
	switch normalizeCode(s) {
	case "true", "1", "yes", "y":
		return "Yes"
	case "false", "0", "no", "n":
		return "No"
	default:
		return nil
	}
}
