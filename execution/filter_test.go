package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/cursorql"
)

func TestFilter(t *testing.T) {
	people := []cursorql.Row{
		cursorql.NewRow(1, "alice"),
		cursorql.NewRow(2, "bob"),
		cursorql.NewRow(nil, "nobody"),
		cursorql.NewRow(2, "carol"),
	}
	tests := []struct {
		name      string
		predicate Expression
		bindings  func() *cursorql.Bindings
		want      []cursorql.Row
	}{
		{
			name:      "constant match",
			predicate: NewEqual(NewColumn(0), NewConstant(cursorql.MakeInt(2))),
			want:      []cursorql.Row{people[1], people[3]},
		},
		{
			name:      "parameter",
			predicate: NewEqual(NewColumn(0), NewBoundValue(0)),
			bindings: func() *cursorql.Bindings {
				b := cursorql.NewBindings()
				b.SetValue(0, cursorql.MakeInt(1))
				return b
			},
			want: []cursorql.Row{people[0]},
		},
		{
			name:      "unbound parameter matches nothing",
			predicate: NewEqual(NewColumn(0), NewBoundValue(0)),
			want:      []cursorql.Row{},
		},
		{
			name:      "non boolean predicate",
			predicate: NewColumn(1),
			want:      []cursorql.Row{},
		},
		{
			name:      "bound row",
			predicate: NewEqual(NewColumn(1), NewBoundField(3, 0)),
			bindings: func() *cursorql.Bindings {
				b := cursorql.NewBindings()
				b.SetRow(3, cursorql.NewRow("carol"))
				return b
			},
			want: []cursorql.Row{people[3]},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bindings *cursorql.Bindings
			if tt.bindings != nil {
				bindings = tt.bindings()
			}
			got := executeTopLevel(t, newTestQueryContext(), NewFilter(NewValuesScan(people), tt.predicate), bindings)
			assertRowsEqual(t, tt.want, got)
		})
	}
}

func TestFilter_PredicateFailure(t *testing.T) {
	spy := newSpy(NewValuesScan(intRows(1, 2)))
	op := NewFilter(spy, NewColumn(4))

	_, err := Execute(newTestQueryContext(), op, cursorql.NewBindings())
	require.Error(t, err)
	assert.Equal(t, 1, spy.stats.opened)
	assert.Equal(t, 1, spy.stats.closed)
}

func TestProject(t *testing.T) {
	b := cursorql.NewBindings()
	b.SetValue(1, cursorql.MakeInt(100))
	b.SetRow(2, cursorql.NewRow("outer"))

	op := NewProject(NewValuesScan(intRows(1, 2)), []Expression{
		NewAdd(NewColumn(0), NewBoundValue(1)),
		NewBoundField(2, 0),
		NewConstant(cursorql.MakeBool(true)),
	})
	got := executeTopLevel(t, newTestQueryContext(), op, b)
	assertRowsEqual(t, []cursorql.Row{
		cursorql.NewRow(101, "outer", true),
		cursorql.NewRow(102, "outer", true),
	}, got)

	assert.Equal(t, "Project($0 + param[1], bound[2].$0, true: ValuesScan(2 rows))", op.String())
}

func TestProject_Failure(t *testing.T) {
	op := NewProject(NewValuesScan(intRows(1)), []Expression{NewBoundField(0, 0)})
	_, err := Execute(newTestQueryContext(), op, cursorql.NewBindings())
	assert.ErrorIs(t, err, cursorql.ErrRowNotBound)
}
