package cmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/cursorql/config"
	"github.com/cube2222/cursorql/execution"
	"github.com/cube2222/cursorql/storage"
	"github.com/cube2222/cursorql/storage/badger"
	"github.com/cube2222/cursorql/storage/memory"
	"github.com/cube2222/cursorql/storage/postgres"
)

type storageAdapter interface {
	execution.StorageAdapter
	execution.RowScanner
	io.Closer
}

func openStorage(cfg config.StorageConfig, catalog *storage.Catalog, log *logrus.Entry) (storageAdapter, error) {
	log = log.WithField("storage", cfg.Type)
	switch cfg.Type {
	case config.StorageMemory:
		return memory.NewStorage(catalog), nil
	case config.StorageBadger:
		s, err := badger.Open(cfg.Badger, catalog, log)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't open badger storage")
		}
		return s, nil
	case config.StoragePostgres:
		s, err := postgres.Connect(cfg.Postgres, catalog, log)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't connect to postgres")
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown storage type: %s", cfg.Type)
	}
}
