package storage

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/execution"
)

var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnknownTable = errors.New("unknown table")
)

// WriteError is returned by storage adapters when a row couldn't be written.
// Err is one of the sentinels above, or the underlying storage failure.
type WriteError struct {
	Table string
	Key   cursorql.Row
	Err   error
}

func (e *WriteError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("couldn't write key %s into table %s: %s", e.Key, e.Table, e.Err)
	}
	return fmt.Sprintf("couldn't write into table %s: %s", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) Cause() error {
	return e.Err
}

func DuplicateKey(table string, key cursorql.Row) *WriteError {
	return &WriteError{
		Table: table,
		Key:   key,
		Err:   ErrDuplicateKey,
	}
}

func UnknownTable(table string) *WriteError {
	return &WriteError{
		Table: table,
		Err:   ErrUnknownTable,
	}
}

// TablePrefix is the key prefix under which the rows of a table are stored
// by key value adapters.
func TablePrefix(table string) []byte {
	return cursorql.SortedMarshalString(table)
}

// RowKey is the storage key of a row. Tables without a primary key get the
// given sequence number instead, which keeps them in insertion order.
func RowKey(table *Table, row cursorql.Row, sequence uint64) []byte {
	out := TablePrefix(table.Name)
	if key := table.Key(row); key != nil {
		return append(out, cursorql.SortedMarshalRow(key)...)
	}
	return append(out, cursorql.SortedMarshalInt(int(sequence))...)
}

// SliceIterator iterates over rows read upfront.
type SliceIterator struct {
	rows  []cursorql.Row
	index int
}

func NewSliceIterator(rows []cursorql.Row) *SliceIterator {
	return &SliceIterator{rows: rows}
}

func (it *SliceIterator) Next() (cursorql.Row, error) {
	if it.index >= len(it.rows) {
		return nil, execution.ErrEndOfStream
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *SliceIterator) Close() error {
	it.rows = nil
	return nil
}
