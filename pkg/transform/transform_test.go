package transform

import (
	"testing"

	"github.com/Sternrassler/odata-export/pkg/dataset"
	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unknownOp is an Op outside the closed set, only constructible in-package.
type unknownOp struct{}

func (unknownOp) Describe() string { return "unknown" }
func (unknownOp) op()              {}

func table(name string, cols []string, rows ...dataset.Record) *dataset.Dataset {
	return dataset.Materialize(name, cols, rows)
}

func storeWith(t *testing.T, sets ...*dataset.Dataset) *dataset.Store {
	t.Helper()
	s := dataset.NewStore()
	for _, ds := range sets {
		require.NoError(t, s.Put(ds.Name, ds))
	}
	return s
}

func TestApply_DoesNotMutateBase(t *testing.T) {
	base := table("Orders", []string{"id"}, dataset.Record{"id": "1"})

	out, err := Apply(base, []Op{
		Rename{From: "id", To: "order_id"},
		Cast{Column: "order_id", Kind: KindInt64},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_id"}, out.Columns)
	assert.Equal(t, int64(1), out.Rows[0]["order_id"])
	assert.Equal(t, []string{"id"}, base.Columns)
	assert.Equal(t, "1", base.Rows[0]["id"])
}

func TestApply_NoOps(t *testing.T) {
	base := table("Orders", []string{"id"}, dataset.Record{"id": "1"})
	out, err := Apply(base, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, base, out)
	assert.NotSame(t, base, out)
}

func TestApply_UnknownOp(t *testing.T) {
	base := table("Orders", []string{"id"})
	_, err := Apply(base, []Op{unknownOp{}}, nil)
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = Apply(base, []Op{nil}, nil)
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestRename_RoundTrip(t *testing.T) {
	base := table("x", []string{"a", "b"}, dataset.Record{"a": 1, "b": "x"})
	out, err := Apply(base, []Op{Rename{From: "a", To: "z"}, Rename{From: "z", To: "a"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, base, out)
}

func TestRename_MissingColumnIsNoop(t *testing.T) {
	base := table("x", []string{"a"}, dataset.Record{"a": 1})
	out, err := Apply(base, []Op{Rename{From: "missing", To: "z"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.Columns)
}

func TestCast(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		in   []any
		want []any
	}{
		{
			name: "int64 with fallback",
			kind: KindInt64,
			in:   []any{"7", "abc", nil},
			want: []any{int64(7), int64(-1), int64(-1)},
		},
		{
			name: "int64 truncates and reads json numbers",
			kind: KindInt64,
			in:   []any{"7.9", gojson.Number("42"), 3.2},
			want: []any{int64(7), int64(42), int64(3)},
		},
		{
			name: "float64 with fallback",
			kind: KindFloat64,
			in:   []any{"1.5", "x", nil, gojson.Number("2")},
			want: []any{1.5, 0.0, 0.0, 2.0},
		},
		{
			name: "string renders null as empty",
			kind: KindString,
			in:   []any{nil, gojson.Number("3"), 1.5, "a"},
			want: []any{"", "3", "1.5", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]dataset.Record, len(tt.in))
			for i, v := range tt.in {
				rows[i] = dataset.Record{"v": v}
			}
			out, err := Apply(table("x", []string{"v"}, rows...), []Op{Cast{Column: "v", Kind: tt.kind}}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Column("v"))
		})
	}
}

func TestCast_MissingColumnIsNoop(t *testing.T) {
	base := table("x", []string{"a"}, dataset.Record{"a": "1"})
	out, err := Apply(base, []Op{Cast{Column: "b", Kind: KindInt64}}, nil)
	require.NoError(t, err)
	assert.Equal(t, base, out)
}

func TestCast_UnknownKind(t *testing.T) {
	base := table("x", []string{"a"}, dataset.Record{"a": "1"})
	_, err := Apply(base, []Op{Cast{Column: "a", Kind: "decimal"}}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"string": KindString, "str": KindString,
		"int64": KindInt64, "INT": KindInt64,
		"float64": KindFloat64, " float ": KindFloat64,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("date")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestJoin_NullKeysNormalize(t *testing.T) {
	left := table("L", []string{"k", "l"},
		dataset.Record{"k": "1", "l": "a"},
		dataset.Record{"k": nil, "l": "b"},
		dataset.Record{"k": "3", "l": "c"},
	)
	right := table("R", []string{"k", "r"},
		dataset.Record{"k": "1", "r": "x"},
		dataset.Record{"k": "nan", "r": "y"},
		dataset.Record{"k": "3", "r": "z"},
	)

	out, err := Apply(left, []Op{Join{Dataset: "R", LeftKey: "k", RightKey: "k"}}, storeWith(t, right))
	require.NoError(t, err)

	assert.Equal(t, []string{"k", "l", "r"}, out.Columns)
	assert.Equal(t, []any{"1", "", "3"}, out.Column("k"))
	assert.Equal(t, []any{"x", "y", "z"}, out.Column("r"))
	assert.Equal(t, []any{"a", "b", "c"}, out.Column("l"))

	stored, _ := storeWith(t, right).Get("R")
	assert.Equal(t, "nan", stored.Rows[1]["k"], "stored dataset is not modified")
}

func TestJoin_LeftRowsPreservedWithoutMatch(t *testing.T) {
	left := table("L", []string{"id"}, dataset.Record{"id": "1"}, dataset.Record{"id": "2"})
	right := table("R", []string{"id", "v"}, dataset.Record{"id": "2", "v": "b"})

	out, err := Apply(left, []Op{Join{Dataset: "R", LeftKey: "id", RightKey: "id"}}, storeWith(t, right))
	require.NoError(t, err)

	require.Equal(t, 2, out.Len())
	assert.Nil(t, out.Rows[0]["v"])
	assert.Equal(t, "b", out.Rows[1]["v"])
}

func TestJoin_DuplicateRightKeysFanOut(t *testing.T) {
	left := table("Orders", []string{"id", "total"},
		dataset.Record{"id": "1", "total": 10},
		dataset.Record{"id": "2", "total": 20},
	)
	right := table("Lines", []string{"order", "sku"},
		dataset.Record{"order": "1", "sku": "a"},
		dataset.Record{"order": "1", "sku": "b"},
		dataset.Record{"order": "2", "sku": "c"},
	)

	out, err := Apply(left, []Op{Join{Dataset: "Lines", LeftKey: "id", RightKey: "order"}}, storeWith(t, right))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "total", "order", "sku"}, out.Columns)
	assert.Equal(t, []any{"a", "b", "c"}, out.Column("sku"))
	assert.Equal(t, []any{10, 10, 20}, out.Column("total"))
}

func TestJoin_OverlappingColumnsSuffixed(t *testing.T) {
	left := table("L", []string{"id", "name"}, dataset.Record{"id": "1", "name": "left"})
	right := table("R", []string{"rid", "name"}, dataset.Record{"rid": "1", "name": "right"})

	out, err := Apply(left, []Op{Join{Dataset: "R", LeftKey: "id", RightKey: "rid"}}, storeWith(t, right))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name_x", "rid", "name_y"}, out.Columns)
	assert.Equal(t, "left", out.Rows[0]["name_x"])
	assert.Equal(t, "right", out.Rows[0]["name_y"])
}

func TestJoin_NumericKeysMatchText(t *testing.T) {
	left := table("L", []string{"id"}, dataset.Record{"id": gojson.Number("5")})
	right := table("R", []string{"id", "v"}, dataset.Record{"id": "5", "v": "ok"})

	out, err := Apply(left, []Op{Join{Dataset: "R", LeftKey: "id", RightKey: "id"}}, storeWith(t, right))
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Rows[0]["v"])
}

func TestJoin_Errors(t *testing.T) {
	left := table("L", []string{"id"}, dataset.Record{"id": "1"})
	right := table("R", []string{"rid"}, dataset.Record{"rid": "1"})
	src := storeWith(t, right)

	_, err := Apply(left, []Op{Join{Dataset: "Missing", LeftKey: "id", RightKey: "rid"}}, src)
	assert.ErrorIs(t, err, dataset.ErrDatasetNotFound)

	_, err = Apply(left, []Op{Join{Dataset: "R", LeftKey: "nope", RightKey: "rid"}}, src)
	assert.ErrorIs(t, err, ErrMissingJoinKey)

	_, err = Apply(left, []Op{Join{Dataset: "R", LeftKey: "id", RightKey: "nope"}}, src)
	assert.ErrorIs(t, err, ErrMissingJoinKey)

	_, err = Apply(left, []Op{Join{Dataset: "R", LeftKey: "id", RightKey: "rid"}}, nil)
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "", NormalizeKey(nil))
	assert.Equal(t, "", NormalizeKey("None"))
	assert.Equal(t, "", NormalizeKey("<NA>"))
	assert.Equal(t, "7", NormalizeKey(gojson.Number("7")))
	assert.Equal(t, "abc", NormalizeKey("abc"))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "rename a -> b", Rename{From: "a", To: "b"}.Describe())
	assert.Equal(t, "cast a as int64", Cast{Column: "a", Kind: KindInt64}.Describe())
	assert.Equal(t, "join R on a = b", Join{Dataset: "R", LeftKey: "a", RightKey: "b"}.Describe())
}
