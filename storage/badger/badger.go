package badger

import (
	"context"
	"sync"

	"github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/execution"
	"github.com/cube2222/cursorql/storage"
)

const sequenceBandwidth = 100

type Config struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Storage keeps rows in badger under the table prefix followed by the sorted primary key.
// Values are rows in the JSON row codec.
type Storage struct {
	db      *badger.DB
	catalog *storage.Catalog

	sequencesMutex sync.Mutex
	sequences      map[string]*badger.Sequence
}

// Open opens the database described by the config. Badger logs go through the given logger.
func Open(cfg Config, catalog *storage.Catalog, log *logrus.Entry) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(log.WithField("component", "badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open badger database")
	}
	return NewStorage(db, catalog), nil
}

func NewStorage(db *badger.DB, catalog *storage.Catalog) *Storage {
	return &Storage{
		db:        db,
		catalog:   catalog,
		sequences: make(map[string]*badger.Sequence),
	}
}

func (s *Storage) nextSequence(table string) (uint64, error) {
	s.sequencesMutex.Lock()
	defer s.sequencesMutex.Unlock()

	seq, ok := s.sequences[table]
	if !ok {
		var err error
		seq, err = s.db.GetSequence(append([]byte("seq/"), storage.TablePrefix(table)...), sequenceBandwidth)
		if err != nil {
			return 0, errors.Wrap(err, "couldn't get sequence")
		}
		s.sequences[table] = seq
	}
	return seq.Next()
}

func (s *Storage) WriteRow(ctx context.Context, table string, row cursorql.Row) error {
	def, err := s.catalog.Table(table)
	if err != nil {
		return err
	}
	var sequence uint64
	if def.Key(row) == nil {
		if sequence, err = s.nextSequence(table); err != nil {
			return &storage.WriteError{Table: table, Err: err}
		}
	}
	key := rowKey(def, row, sequence)

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return storage.DuplicateKey(table, def.Key(row))
		} else if err != badger.ErrKeyNotFound {
			return errors.Wrap(err, "couldn't check for existing key")
		}
		return txn.Set(key, cursorql.MarshalRow(row))
	})
	if err != nil {
		if _, ok := err.(*storage.WriteError); ok {
			return err
		}
		return &storage.WriteError{Table: table, Key: def.Key(row), Err: err}
	}
	return nil
}

func rowKey(def *storage.Table, row cursorql.Row, sequence uint64) []byte {
	return append([]byte("row/"), storage.RowKey(def, row, sequence)...)
}

func (s *Storage) ScanRows(ctx context.Context, table string) (execution.RowIterator, error) {
	if _, err := s.catalog.Table(table); err != nil {
		return nil, err
	}
	prefix := append([]byte("row/"), storage.TablePrefix(table)...)

	txn := s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	it.Seek(prefix)

	return &Iterator{
		txn:    txn,
		it:     it,
		prefix: prefix,
	}, nil
}

func (s *Storage) Close() error {
	s.sequencesMutex.Lock()
	defer s.sequencesMutex.Unlock()

	for table, seq := range s.sequences {
		if err := seq.Release(); err != nil {
			return errors.Wrapf(err, "couldn't release sequence of table %s", table)
		}
		delete(s.sequences, table)
	}
	return s.db.Close()
}

// Iterator is a wrapper around *badger.Iterator reading rows under a prefix.
type Iterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
}

func (bi *Iterator) Next() (cursorql.Row, error) {
	if !bi.it.ValidForPrefix(bi.prefix) {
		return nil, execution.ErrEndOfStream
	}
	value, err := bi.it.Item().ValueCopy(nil)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get value")
	}
	bi.it.Next()

	row, err := cursorql.UnmarshalRow(value)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't unmarshal row")
	}
	return row, nil
}

func (bi *Iterator) Close() error {
	bi.it.Close()
	bi.txn.Discard()
	return nil
}
