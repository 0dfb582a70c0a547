package execution

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/cursorql"
)

var loopModes = []struct {
	name     string
	pipeline bool
}{
	{name: "rebind", pipeline: false},
	{name: "pipelined", pipeline: true},
}

func mustMap(t *testing.T, outer, inner Operator, position, depth int, pipeline bool) *MapNestedLoops {
	t.Helper()
	node, err := NewMapNestedLoops(outer, inner, position, depth, pipeline)
	require.NoError(t, err)
	return node
}

func TestMapNestedLoops(t *testing.T) {
	tests := []struct {
		name  string
		outer Operator
		inner Operator
		want  []cursorql.Row
	}{
		{
			name:  "cross product",
			outer: NewValuesScan(intRows(1, 2, 3)),
			inner: NewProject(
				NewValuesScan(intRows(10, 20)),
				[]Expression{NewBoundField(0, 0), NewColumn(0)},
			),
			want: []cursorql.Row{
				cursorql.NewRow(1, 10), cursorql.NewRow(1, 20),
				cursorql.NewRow(2, 10), cursorql.NewRow(2, 20),
				cursorql.NewRow(3, 10), cursorql.NewRow(3, 20),
			},
		},
		{
			name:  "correlated filter",
			outer: NewValuesScan(intRows(1, 2, 3)),
			inner: NewFilter(
				NewValuesScan([]cursorql.Row{
					cursorql.NewRow(1, "a"),
					cursorql.NewRow(3, "b"),
					cursorql.NewRow(3, "c"),
				}),
				NewEqual(NewColumn(0), NewBoundField(0, 0)),
			),
			want: []cursorql.Row{
				cursorql.NewRow(1, "a"),
				cursorql.NewRow(3, "b"),
				cursorql.NewRow(3, "c"),
			},
		},
		{
			name:  "empty outer",
			outer: NewValuesScan(nil),
			inner: NewValuesScan(intRows(1)),
			want:  nil,
		},
		{
			name:  "empty inner",
			outer: NewValuesScan(intRows(1, 2)),
			inner: NewValuesScan(nil),
			want:  nil,
		},
		{
			name:  "limited inner",
			outer: NewValuesScan(intRows(1, 2)),
			inner: NewLimit(
				NewProject(NewValuesScan(intRows(5, 6, 7)), []Expression{NewAdd(NewColumn(0), NewBoundField(0, 0))}),
				FixedLimit(1),
				FixedLimit(1),
			),
			want: intRows(7, 8),
		},
	}
	for _, tt := range tests {
		for _, mode := range loopModes {
			t.Run(fmt.Sprintf("%s/%s", tt.name, mode.name), func(t *testing.T) {
				node := mustMap(t, tt.outer, tt.inner, 0, 1, mode.pipeline)
				got := executeTopLevel(t, newTestQueryContext(), node, nil)
				assertRowsEqual(t, tt.want, got)
			})
		}
	}
}

func TestMapNestedLoops_Nested(t *testing.T) {
	for _, outerMode := range loopModes {
		for _, innerMode := range loopModes {
			t.Run(fmt.Sprintf("%s/%s", outerMode.name, innerMode.name), func(t *testing.T) {
				innerLevel := 0
				if outerMode.pipeline {
					innerLevel = 1
				}
				middle := mustMap(t,
					NewProject(NewValuesScan(intRows(10, 20)), []Expression{NewAdd(NewColumn(0), NewBoundField(0, 0))}),
					NewProject(NewValuesScan(intRows(100)), []Expression{NewAdd(NewColumn(0), NewBoundField(1, 0))}),
					1, innerLevel+1, innerMode.pipeline,
				)
				node := mustMap(t, NewValuesScan(intRows(1, 2)), middle, 0, 1, outerMode.pipeline)

				got := executeTopLevel(t, newTestQueryContext(), node, nil)
				assertRowsEqual(t, intRows(111, 121, 112, 122), got)
			})
		}
	}
}

func TestMapNestedLoops_TopLevelFrames(t *testing.T) {
	frame := func(limit cursorql.Value, offset int) *cursorql.Bindings {
		b := cursorql.NewBindings()
		b.SetValue(5, limit)
		b.SetValue(6, cursorql.MakeInt(offset))
		return b
	}

	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			node := mustMap(t,
				NewLimit(NewValuesScan(intRows(1, 2, 3)), FixedLimit(0), BoundLimit(5)),
				NewProject(NewValuesScan(intRows(0)), []Expression{NewAdd(NewBoundField(0, 0), NewBoundValue(6))}),
				0, 1, mode.pipeline,
			)
			frames := []*cursorql.Bindings{
				frame(cursorql.MakeInt(1), 100),
				frame(cursorql.MakeInt(0), 300),
				frame(cursorql.MakeNull(), 200),
			}
			got := make(map[*cursorql.Bindings][]cursorql.Row)
			err := ExecuteEach(newTestQueryContext(), node, NewMultipleBindingsCursor(frames...), func(frame *cursorql.Bindings, row cursorql.Row) error {
				got[frame] = append(got[frame], row)
				return nil
			})
			require.NoError(t, err)

			assertRowsEqual(t, intRows(101), got[frames[0]])
			assertRowsEqual(t, nil, got[frames[1]])
			assertRowsEqual(t, intRows(201, 202, 203), got[frames[2]])
		})
	}
}

func TestMapNestedLoops_CloseSkipsRestOfFrame(t *testing.T) {
	first, second := cursorql.NewBindings(), cursorql.NewBindings()
	first.SetValue(9, cursorql.MakeInt(10))
	second.SetValue(9, cursorql.MakeInt(20))

	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			node := mustMap(t,
				NewValuesScan(intRows(1, 2, 3)),
				NewProject(NewValuesScan(intRows(0)), []Expression{NewAdd(NewBoundField(0, 0), NewBoundValue(9))}),
				0, 1, mode.pipeline,
			)
			c := node.Cursor(newTestQueryContext(), NewMultipleBindingsCursor(first, second))
			defer c.Destroy()

			require.NoError(t, c.OpenBindings())
			frame, err := c.NextBindings()
			require.NoError(t, err)
			require.Same(t, first, frame)
			require.NoError(t, c.Open())
			row, err := c.Next()
			require.NoError(t, err)
			assertRowsEqual(t, intRows(11), []cursorql.Row{row})
			require.NoError(t, c.Close())

			frame, err = c.NextBindings()
			require.NoError(t, err)
			require.Same(t, second, frame)
			require.NoError(t, c.Open())
			rows, err := Drain(c)
			require.NoError(t, err)
			assertRowsEqual(t, intRows(21, 22, 23), rows)

			_, err = c.NextBindings()
			assert.Equal(t, ErrEndOfStream, err)
			require.NoError(t, c.CloseBindings())
		})
	}
}

func TestMapNestedLoops_Jump(t *testing.T) {
	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			node := mustMap(t, NewValuesScan(intRows(1)), NewValuesScan(intRows(2)), 0, 1, mode.pipeline)
			c := node.Cursor(newTestQueryContext(), NewSingletonBindingsCursor(cursorql.NewBindings()))
			defer c.Destroy()
			require.NoError(t, OpenTopLevel(c))

			err := c.Jump(cursorql.NewRow(1), ColumnSelector{0})
			assert.True(t, errors.Is(err, ErrUnsupportedOperation))
			assert.True(t, errors.Is(err, ErrProtocolViolation))
		})
	}
}

func TestMapNestedLoops_Cancel(t *testing.T) {
	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			qc := newTestQueryContext()
			outer := newSpy(NewValuesScan(intRows(1, 2, 3)))
			inner := newSpy(NewValuesScan(intRows(1, 2, 3)))
			c := mustMap(t, outer, inner, 0, 1, mode.pipeline).Cursor(qc, NewSingletonBindingsCursor(cursorql.NewBindings()))
			require.NoError(t, OpenTopLevel(c))

			_, err := c.Next()
			require.NoError(t, err)
			qc.Cancel()

			_, err = c.Next()
			assert.True(t, errors.Is(err, ErrQueryCanceled))
			assert.Equal(t, Idle, c.State())
			for _, spied := range append(outer.stats.cursors, inner.stats.cursors...) {
				assert.NotEqual(t, Active, spied.State())
			}

			c.Destroy()
			assert.Equal(t, Destroyed, c.State())
			for _, spied := range append(outer.stats.cursors, inner.stats.cursors...) {
				assert.Equal(t, Destroyed, spied.State())
			}
		})
	}
}

func TestMapNestedLoops_InnerFailure(t *testing.T) {
	for _, mode := range loopModes {
		t.Run(mode.name, func(t *testing.T) {
			node := mustMap(t, NewValuesScan(intRows(1, 2)), newFailingScan(intRows(7)), 0, 1, mode.pipeline)
			_, err := Execute(newTestQueryContext(), node, cursorql.NewBindings())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errTestFailure))
		})
	}
}

func TestMapNestedLoops_FailureReleasesOuter(t *testing.T) {
	tests := []struct {
		name    string
		inner   func() Operator
		stop    func(qc *QueryContext)
		wantErr error
	}{
		{
			name:    "inner failure",
			inner:   func() Operator { return newFailingScan(intRows(7)) },
			stop:    func(*QueryContext) {},
			wantErr: errTestFailure,
		},
		{
			name:    "cancelation",
			inner:   func() Operator { return NewValuesScan(intRows(7, 8)) },
			stop:    func(qc *QueryContext) { qc.Cancel() },
			wantErr: ErrQueryCanceled,
		},
	}
	for _, tt := range tests {
		for _, mode := range loopModes {
			t.Run(fmt.Sprintf("%s/%s", tt.name, mode.name), func(t *testing.T) {
				qc := newTestQueryContext()
				outer := newSpy(NewValuesScan(intRows(1, 2, 3)))
				c := mustMap(t, outer, tt.inner(), 0, 1, mode.pipeline).Cursor(qc, NewSingletonBindingsCursor(cursorql.NewBindings()))
				defer c.Destroy()
				require.NoError(t, OpenTopLevel(c))

				row, err := c.Next()
				require.NoError(t, err)
				assert.Equal(t, cursorql.NewRow(7), row)
				tt.stop(qc)

				_, err = c.Next()
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, Idle, c.State())
				require.NotEmpty(t, outer.stats.cursors)
				for _, spied := range outer.stats.cursors {
					assert.NotEqual(t, Active, spied.State(), "outer input left open")
				}
				assert.GreaterOrEqual(t, outer.stats.closed, 1)
			})
		}
	}
}

func TestMapNestedLoops_BindingsTooDeep(t *testing.T) {
	t.Run("frame deeper than the loop expects", func(t *testing.T) {
		node := mustMap(t, NewValuesScan(intRows(1)), NewValuesScan(intRows(2)), 0, 1, true)
		_, err := Execute(newTestQueryContext(), node, cursorql.NewBindings().Derive())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBindingsTooDeep))
		assert.True(t, errors.Is(err, ErrProtocolViolation))
	})
	t.Run("collapse sees a frame below its level", func(t *testing.T) {
		qc := newTestQueryContext()
		top := cursorql.NewBindings()
		tooDeep := top.Derive().Derive()
		c := newCollapseBindingsCursor(qc, NewValuesScan(intRows(1)).Cursor(qc, NewMultipleBindingsCursor(top, tooDeep)), 1)
		defer c.Destroy()

		require.NoError(t, c.OpenBindings())
		frame, err := c.NextBindings()
		require.NoError(t, err)
		require.Same(t, top, frame)
		require.NoError(t, c.Open())

		_, err = c.Next()
		assert.True(t, errors.Is(err, ErrBindingsTooDeep))
		assert.Equal(t, Idle, c.State())
	})
}

func TestNewMapNestedLoops_Validation(t *testing.T) {
	scan := NewValuesScan(nil)
	_, err := NewMapNestedLoops(nil, scan, 0, 1, false)
	assert.Error(t, err)
	_, err = NewMapNestedLoops(scan, scan, -1, 1, false)
	assert.Error(t, err)
	_, err = NewMapNestedLoops(scan, scan, 0, 0, true)
	assert.Error(t, err)
}

// planGenerator builds random plans of nested loops, limits and correlated projections.
// The structure only depends on the structure source, so the same seed yields the same
// plan whatever loop mode is picked for each map.
type planGenerator struct {
	structure *rand.Rand
	mode      func() bool
	positions int
}

func (g *planGenerator) operator(t *testing.T, level int, scope []int, budget int) Operator {
	choice := g.structure.Intn(4)
	switch {
	case budget <= 0 || choice == 0:
		return g.leaf(scope)
	case choice == 1:
		skip, limit := g.structure.Intn(3), g.structure.Intn(4)
		return NewLimit(g.operator(t, level, scope, budget-1), FixedLimit(skip), FixedLimit(limit))
	default:
		position := g.positions
		g.positions++
		pipeline := g.mode()
		innerLevel := level
		if pipeline {
			innerLevel = level + 1
		}
		outer := g.operator(t, level, scope, budget-1)
		innerScope := append(append([]int{}, scope...), position)
		inner := g.operator(t, innerLevel, innerScope, budget-1)
		return mustMap(t, outer, inner, position, level+1, pipeline)
	}
}

func (g *planGenerator) leaf(scope []int) Operator {
	values := make([]int, 1+g.structure.Intn(3))
	for i := range values {
		values[i] = g.structure.Intn(10)
	}
	scan := NewValuesScan(intRows(values...))
	if len(scope) == 0 || g.structure.Intn(3) == 0 {
		return scan
	}
	position := scope[g.structure.Intn(len(scope))]
	return NewProject(scan, []Expression{NewAdd(NewColumn(0), NewBoundField(position, 0))})
}

func TestMapNestedLoops_RandomPlans(t *testing.T) {
	const budget = 5

	build := func(t *testing.T, seed int64, mode func() bool) Operator {
		g := &planGenerator{
			structure: rand.New(rand.NewSource(seed)),
			mode:      mode,
		}
		return g.operator(t, 0, nil, budget)
	}
	run := func(t *testing.T, op Operator) [][]cursorql.Row {
		frames := []*cursorql.Bindings{cursorql.NewBindings(), cursorql.NewBindings()}
		out := make([][]cursorql.Row, len(frames))
		index := make(map[*cursorql.Bindings]int)
		for i := range frames {
			index[frames[i]] = i
		}
		err := ExecuteEach(newTestQueryContext(), op, NewMultipleBindingsCursor(frames...), func(frame *cursorql.Bindings, row cursorql.Row) error {
			i, ok := index[frame]
			if !ok {
				return errors.Errorf("rows reported for unknown frame %s", frame)
			}
			out[i] = append(out[i], row)
			return nil
		})
		require.NoError(t, err, "plan: %s", op)
		return out
	}

	for seed := int64(0); seed < 200; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			modes := rand.New(rand.NewSource(seed * 7919))

			rebind := build(t, seed, func() bool { return false })
			pipelined := build(t, seed, func() bool { return true })
			mixed := build(t, seed, func() bool { return modes.Intn(2) == 0 })

			want := run(t, rebind)
			assert.Equal(t, len(want[0]), len(want[1]), "top level frames are independent")
			for _, op := range []Operator{pipelined, mixed} {
				got := run(t, op)
				for i := range want {
					assertRowsEqual(t, want[i], got[i])
				}
			}
		})
	}
}
