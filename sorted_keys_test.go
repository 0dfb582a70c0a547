package cursorql

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedMarshal_Order(t *testing.T) {
	tests := []struct {
		name   string
		values []Value
	}{
		{
			name: "ints",
			values: []Value{
				MakeInt(math.MinInt64), MakeInt(-18249), MakeInt(-1), MakeInt(0), MakeInt(1), MakeInt(1587129), MakeInt(math.MaxInt64),
			},
		},
		{
			name: "floats",
			values: []Value{
				MakeFloat(math.Inf(-1)), MakeFloat(-192.11239), MakeFloat(-0.5), MakeFloat(0), MakeFloat(0.25), MakeFloat(1827.128852), MakeFloat(math.Inf(1)),
			},
		},
		{
			name: "strings",
			values: []Value{
				MakeString(""), MakeString("\x00"), MakeString("\x00a"), MakeString("a"), MakeString("a\x00"), MakeString("ab"), MakeString("b"),
			},
		},
		{
			name:   "bools",
			values: []Value{MakeBool(false), MakeBool(true)},
		},
		{
			name: "tuples",
			values: []Value{
				MakeTuple(nil),
				MakeTuple([]Value{MakeInt(1)}),
				MakeTuple([]Value{MakeInt(1), MakeString("a")}),
				MakeTuple([]Value{MakeInt(1), MakeString("b")}),
				MakeTuple([]Value{MakeInt(2)}),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 1; i < len(tt.values); i++ {
				prev, cur := SortedMarshal(tt.values[i-1]), SortedMarshal(tt.values[i])
				assert.Equal(t, -1, bytes.Compare(prev, cur), "%s should sort before %s", tt.values[i-1], tt.values[i])
			}
			for _, v := range tt.values {
				got, err := SortedUnmarshal(SortedMarshal(v))
				require.NoError(t, err)
				assert.True(t, AreEqual(v, got), "want %s, got %s", v, got)
			}
		})
	}
}

func TestSortedMarshalRow(t *testing.T) {
	rows := []Row{
		NewRow(1, "a"),
		NewRow(1, "a", nil),
		NewRow(1, "ab"),
		NewRow(2, ""),
	}
	for i := 1; i < len(rows); i++ {
		assert.Equal(t, -1, bytes.Compare(SortedMarshalRow(rows[i-1]), SortedMarshalRow(rows[i])), "%s should sort before %s", rows[i-1], rows[i])
	}

	row := NewRow(nil, true, -3, 2.5, "x\x00y", []interface{}{1, "z"})
	got, err := SortedUnmarshalRow(SortedMarshalRow(row))
	require.NoError(t, err)
	assert.True(t, RowsEqual(row, got), "want %s, got %s", row, got)
}

func TestSortedUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "unknown identifier", input: []byte{42}},
		{name: "short int", input: []byte{IntIdentifier, 1, 2}},
		{name: "unterminated string", input: []byte{StringIdentifier, 'a'}},
		{name: "unterminated tuple", input: []byte{TupleIdentifier, NullIdentifier}},
		{name: "trailing bytes", input: []byte{NullIdentifier, NullIdentifier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SortedUnmarshal(tt.input)
			assert.Error(t, err)
		})
	}
}
