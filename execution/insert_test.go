package execution

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/cursorql"
)

type recordingAdapter struct {
	written map[string][]cursorql.Row
	failOn  int
	err     error
}

func (a *recordingAdapter) WriteRow(ctx context.Context, table string, row cursorql.Row) error {
	if a.err != nil && len(a.written[table]) == a.failOn {
		return a.err
	}
	if a.written == nil {
		a.written = make(map[string][]cursorql.Row)
	}
	a.written[table] = append(a.written[table], row)
	return nil
}

var errTooLarge = errors.New("value too large")

// maxValueChecker rejects rows whose first column exceeds max.
type maxValueChecker struct {
	max int
}

func (c maxValueChecker) Check(table string, row cursorql.Row) error {
	n, ok, err := cursorql.AsInt(row[0])
	if err != nil {
		return err
	}
	if ok && n > c.max {
		return errTooLarge
	}
	return nil
}

func TestInsert(t *testing.T) {
	tests := []struct {
		name         string
		input        []cursorql.Row
		adapter      *recordingAdapter
		checker      ConstraintChecker
		want         UpdateResult
		wantWritten  int
		wantErr      error
		failingInput bool
	}{
		{
			name:        "all rows written",
			input:       intRows(1, 2, 3),
			adapter:     &recordingAdapter{},
			want:        NewUpdateResult(3, 3),
			wantWritten: 3,
		},
		{
			name:    "empty input",
			adapter: &recordingAdapter{},
			want:    NewUpdateResult(0, 0),
		},
		{
			name:        "constraint violation",
			input:       intRows(1, 2, 30, 4),
			adapter:     &recordingAdapter{},
			checker:     maxValueChecker{max: 10},
			wantWritten: 2,
			wantErr:     errTooLarge,
		},
		{
			name:        "storage failure",
			input:       intRows(1, 2, 3),
			adapter:     &recordingAdapter{failOn: 1, err: errTestFailure},
			wantWritten: 1,
			wantErr:     errTestFailure,
		},
		{
			name:         "input failure",
			input:        intRows(1),
			adapter:      &recordingAdapter{},
			wantWritten:  1,
			wantErr:      errTestFailure,
			failingInput: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var source Operator = NewValuesScan(tt.input)
			if tt.failingInput {
				source = newFailingScan(tt.input)
			}
			spy := newSpy(source)
			opts := []QueryContextOption{WithStorageAdapter(tt.adapter)}
			if tt.checker != nil {
				opts = append(opts, WithConstraintChecker(tt.checker))
			}
			qc := newTestQueryContext(opts...)

			got, err := NewInsert(spy, "people").Run(qc, cursorql.NewBindings())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, UpdateResult{}, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.Len(t, tt.adapter.written["people"], tt.wantWritten)
			require.Len(t, spy.stats.cursors, 1)
			assert.Equal(t, Destroyed, spy.stats.cursors[0].State(), "input not destroyed")
			assert.Equal(t, 1, spy.stats.destroyed)
		})
	}
}

func TestInsert_WritesInOrder(t *testing.T) {
	adapter := &recordingAdapter{}
	rows := []cursorql.Row{
		cursorql.NewRow(1, "alice"),
		cursorql.NewRow(2, "bob"),
	}
	qc := newTestQueryContext(WithStorageAdapter(adapter))

	result, err := NewInsert(NewValuesScan(rows), "people").Run(qc, cursorql.NewBindings())
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsSeen())
	assert.Equal(t, 2, result.RowsModified())
	assertRowsEqual(t, rows, adapter.written["people"])
}

func TestInsert_BoundInput(t *testing.T) {
	adapter := &recordingAdapter{}
	qc := newTestQueryContext(WithStorageAdapter(adapter))
	bindings := cursorql.NewBindings()
	bindings.SetValue(0, cursorql.MakeInt(1))

	input := NewLimit(NewValuesScan(intRows(1, 2, 3)), FixedLimit(0), BoundLimit(0))
	result, err := NewInsert(input, "numbers").Run(qc, bindings)
	require.NoError(t, err)
	assert.Equal(t, NewUpdateResult(1, 1), result)
}

func TestInsert_Canceled(t *testing.T) {
	adapter := &recordingAdapter{}
	qc := newTestQueryContext(WithStorageAdapter(adapter))
	qc.Cancel()

	result, err := NewInsert(NewValuesScan(intRows(1, 2)), "numbers").Run(qc, cursorql.NewBindings())
	assert.True(t, errors.Is(err, ErrQueryCanceled))
	assert.Equal(t, UpdateResult{}, result)
	assert.Empty(t, adapter.written)
}

func TestInsert_NoAdapter(t *testing.T) {
	_, err := NewInsert(NewValuesScan(intRows(1)), "numbers").Run(newTestQueryContext(), cursorql.NewBindings())
	assert.Error(t, err)
}
