package execution

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/cursorql"
)

func newTestQueryContext(opts ...QueryContextOption) *QueryContext {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	opts = append([]QueryContextOption{WithLogger(logrus.NewEntry(log))}, opts...)
	return NewQueryContext(context.Background(), opts...)
}

func intRows(values ...int) []cursorql.Row {
	out := make([]cursorql.Row, len(values))
	for i := range values {
		out[i] = cursorql.NewRow(values[i])
	}
	return out
}

func stringRows(values ...string) []cursorql.Row {
	out := make([]cursorql.Row, len(values))
	for i := range values {
		out[i] = cursorql.NewRow(values[i])
	}
	return out
}

func assertRowsEqual(t *testing.T, want, got []cursorql.Row) {
	t.Helper()
	require.Equal(t, len(want), len(got), "want %v, got %v", want, got)
	for i := range want {
		require.True(t, cursorql.RowsEqual(want[i], got[i]), "row %d: want %s, got %s", i, want[i], got[i])
	}
}

func executeTopLevel(t *testing.T, qc *QueryContext, op Operator, bindings *cursorql.Bindings) []cursorql.Row {
	t.Helper()
	if bindings == nil {
		bindings = cursorql.NewBindings()
	}
	rows, err := Execute(qc, op, bindings)
	require.NoError(t, err)
	return rows
}

type cursorStats struct {
	opened, closed, nexts, destroyed int
	cursors                          []*spyCursor
}

// spyOperator records how its cursors are driven.
type spyOperator struct {
	Operator
	stats *cursorStats
}

func newSpy(op Operator) *spyOperator {
	return &spyOperator{
		Operator: op,
		stats:    &cursorStats{},
	}
}

func (s *spyOperator) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	c := &spyCursor{
		Cursor: s.Operator.Cursor(qc, bindings),
		stats:  s.stats,
	}
	s.stats.cursors = append(s.stats.cursors, c)
	return c
}

type spyCursor struct {
	Cursor
	stats *cursorStats
}

func (c *spyCursor) Open() error {
	c.stats.opened++
	return c.Cursor.Open()
}

func (c *spyCursor) Next() (cursorql.Row, error) {
	c.stats.nexts++
	return c.Cursor.Next()
}

func (c *spyCursor) Close() error {
	c.stats.closed++
	return c.Cursor.Close()
}

func (c *spyCursor) Destroy() {
	c.stats.destroyed++
	c.Cursor.Destroy()
}

var errTestFailure = errors.New("test failure")

// failingScan yields its rows and then fails.
type failingScan struct {
	*ValuesScan
}

func newFailingScan(rows []cursorql.Row) *failingScan {
	return &failingScan{ValuesScan: NewValuesScan(rows)}
}

func (node *failingScan) Cursor(qc *QueryContext, bindings BindingsCursor) Cursor {
	return &failingScanCursor{Cursor: node.ValuesScan.Cursor(qc, bindings)}
}

type failingScanCursor struct {
	Cursor
}

func (c *failingScanCursor) Next() (cursorql.Row, error) {
	row, err := c.Cursor.Next()
	if err == ErrEndOfStream && c.State() != Destroyed {
		return nil, errTestFailure
	}
	return row, err
}
