package transform

import (
	"fmt"

	"github.com/Sternrassler/odata-export/pkg/dataset"
)

// Suffixes added to non-key columns present on both sides of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// NormalizeKey renders a join key as text. nil and the literal null markers
// become the empty string.
func NormalizeKey(v any) string {
	s, ok := dataset.Stringify(v)
	if !ok || dataset.IsNullMarker(s) {
		return ""
	}
	return s
}

// applyJoin left-joins the referenced dataset onto left. Every left row is
// kept; duplicate right keys fan out.
func applyJoin(left *dataset.Dataset, j Join, src Source) (*dataset.Dataset, error) {
	if src == nil {
		return nil, fmt.Errorf("join %s: no dataset source", j.Dataset)
	}
	stored, err := src.Get(j.Dataset)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", j.Dataset, err)
	}
	if !left.HasColumn(j.LeftKey) {
		return nil, fmt.Errorf("%w: left %q", ErrMissingJoinKey, j.LeftKey)
	}
	if !stored.HasColumn(j.RightKey) {
		return nil, fmt.Errorf("%w: right %q in %s", ErrMissingJoinKey, j.RightKey, j.Dataset)
	}

	right := stored.Clone()
	normalizeKeyColumn(left, j.LeftKey)
	normalizeKeyColumn(right, j.RightKey)

	sharedKey := j.LeftKey == j.RightKey
	leftNames, rightNames := joinColumnNames(left.Columns, right.Columns, j, sharedKey)

	out := &dataset.Dataset{Name: left.Name}
	for _, col := range left.Columns {
		out.Columns = append(out.Columns, leftNames[col])
	}
	for _, col := range right.Columns {
		if name, ok := rightNames[col]; ok {
			out.Columns = append(out.Columns, name)
		}
	}

	index := make(map[string][]dataset.Record, right.Len())
	for _, row := range right.Rows {
		key := row[j.RightKey].(string)
		index[key] = append(index[key], row)
	}

	out.Rows = make([]dataset.Record, 0, left.Len())
	for _, lrow := range left.Rows {
		matches := index[lrow[j.LeftKey].(string)]
		if len(matches) == 0 {
			out.Rows = append(out.Rows, combineRow(lrow, nil, leftNames, rightNames))
			continue
		}
		for _, rrow := range matches {
			out.Rows = append(out.Rows, combineRow(lrow, rrow, leftNames, rightNames))
		}
	}

	return out, nil
}

func normalizeKeyColumn(ds *dataset.Dataset, col string) {
	for _, row := range ds.Rows {
		row[col] = NormalizeKey(row[col])
	}
}

// joinColumnNames maps each input column to its output name. When both keys
// share a name the right key is dropped from the output.
func joinColumnNames(leftCols, rightCols []string, j Join, sharedKey bool) (map[string]string, map[string]string) {
	inLeft := make(map[string]bool, len(leftCols))
	for _, c := range leftCols {
		inLeft[c] = true
	}
	inRight := make(map[string]bool, len(rightCols))
	for _, c := range rightCols {
		inRight[c] = true
	}

	leftNames := make(map[string]string, len(leftCols))
	for _, c := range leftCols {
		if inRight[c] && !(sharedKey && c == j.LeftKey) {
			leftNames[c] = c + LeftSuffix
		} else {
			leftNames[c] = c
		}
	}

	rightNames := make(map[string]string, len(rightCols))
	for _, c := range rightCols {
		switch {
		case sharedKey && c == j.RightKey:
			continue
		case inLeft[c]:
			rightNames[c] = c + RightSuffix
		default:
			rightNames[c] = c
		}
	}
	return leftNames, rightNames
}

func combineRow(lrow, rrow dataset.Record, leftNames, rightNames map[string]string) dataset.Record {
	row := make(dataset.Record, len(leftNames)+len(rightNames))
	for col, name := range leftNames {
		row[name] = lrow[col]
	}
	for col, name := range rightNames {
		if rrow == nil {
			row[name] = nil
		} else {
			row[name] = rrow[col]
		}
	}
	return row
}
