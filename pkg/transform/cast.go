package transform

import (
	"fmt"

	"github.com/Sternrassler/odata-export/pkg/dataset"
)

// IntFallback replaces int64 values that cannot be parsed. It is
// indistinguishable from a genuine -1 in the source data.
const IntFallback int64 = -1

// FloatFallback replaces float64 values that cannot be parsed.
const FloatFallback = 0.0

// applyCast converts a column in place. A missing column is a no-op and
// malformed values are replaced, never reported.
func applyCast(ds *dataset.Dataset, c Cast) error {
	if !ds.HasColumn(c.Column) {
		return nil
	}

	var conv func(any) any
	switch c.Kind {
	case KindString:
		conv = castString
	case KindInt64:
		conv = castInt64
	case KindFloat64:
		conv = castFloat64
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}

	values := make([]any, len(ds.Rows))
	for i, row := range ds.Rows {
		values[i] = conv(row[c.Column])
	}
	ds.SetColumn(c.Column, values)
	return nil
}

func castString(v any) any {
	s, _ := dataset.Stringify(v)
	return s
}

func castInt64(v any) any {
	n, ok := dataset.Int(v)
	if !ok {
		return IntFallback
	}
	return n
}

func castFloat64(v any) any {
	f, ok := dataset.Float(v)
	if !ok {
		return FloatFallback
	}
	return f
}
