package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/execution"
	"github.com/cube2222/cursorql/storage"
)

type keyValue struct {
	key []byte
	row cursorql.Row
}

func (k *keyValue) Less(than btree.Item) bool {
	other, ok := than.(*keyValue)
	if !ok {
		return true
	}

	return bytes.Compare(k.key, other.key) == -1
}

type sortedTable struct {
	tree     *btree.BTree
	sequence uint64
}

// Storage keeps every table in a btree ordered by the primary key.
// Tables without a primary key are kept in insertion order.
type Storage struct {
	sync.Mutex
	catalog *storage.Catalog
	tables  map[string]*sortedTable
}

func NewStorage(catalog *storage.Catalog) *Storage {
	return &Storage{
		catalog: catalog,
		tables:  make(map[string]*sortedTable),
	}
}

func (s *Storage) table(name string) (*storage.Table, *sortedTable, error) {
	def, err := s.catalog.Table(name)
	if err != nil {
		return nil, nil, err
	}
	t, ok := s.tables[name]
	if !ok {
		t = &sortedTable{tree: btree.New(2)}
		s.tables[name] = t
	}
	return def, t, nil
}

func (s *Storage) WriteRow(ctx context.Context, table string, row cursorql.Row) error {
	s.Lock()
	defer s.Unlock()

	def, t, err := s.table(table)
	if err != nil {
		return err
	}
	item := &keyValue{
		key: storage.RowKey(def, row, t.sequence),
		row: row,
	}
	if t.tree.Has(item) {
		return storage.DuplicateKey(table, def.Key(row))
	}
	t.tree.ReplaceOrInsert(item)
	t.sequence++
	return nil
}

// ScanRows returns the rows of the table as of the call, in key order.
func (s *Storage) ScanRows(ctx context.Context, table string) (execution.RowIterator, error) {
	s.Lock()
	defer s.Unlock()

	_, t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	rows := make([]cursorql.Row, 0, t.tree.Len())
	t.tree.Ascend(func(item btree.Item) bool {
		rows = append(rows, item.(*keyValue).row)
		return true
	})
	return storage.NewSliceIterator(rows), nil
}

func (s *Storage) Close() error {
	return nil
}
