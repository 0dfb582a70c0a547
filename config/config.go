package config

import (
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cube2222/cursorql/storage"
	"github.com/cube2222/cursorql/storage/badger"
	"github.com/cube2222/cursorql/storage/postgres"
)

const DefaultPath = "~/.cursorql/config.yml"

const (
	StorageMemory   = "memory"
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

type ExecutionConfig struct {
	// Pipeline makes nested loops use the pipelined strategy unless the plan says otherwise.
	Pipeline bool `yaml:"pipeline"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type StorageConfig struct {
	Type     string          `yaml:"type"`
	Badger   badger.Config   `yaml:"badger"`
	Postgres postgres.Config `yaml:"postgres"`
}

type Config struct {
	Execution ExecutionConfig  `yaml:"execution"`
	Logging   LoggingConfig    `yaml:"logging"`
	Storage   StorageConfig    `yaml:"storage"`
	Tables    []*storage.Table `yaml:"tables"`
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Type: StorageMemory,
			Postgres: postgres.Config{
				Host: "localhost",
				Port: 5432,
			},
		},
	}
}

// Read reads the configuration file at path, filling in defaults for anything it leaves out.
// A missing file at the default path is not an error.
func Read(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't expand config path")
	}

	config := Default()

	f, err := os.Open(expanded)
	if os.IsNotExist(err) && path == DefaultPath {
		return config, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "couldn't open file")
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, errors.Wrap(err, "couldn't decode yaml configuration")
	}

	if config.Storage.Badger.Path != "" {
		config.Storage.Badger.Path, err = homedir.Expand(config.Storage.Badger.Path)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't expand badger path")
		}
	}
	if config.Logging.File != "" {
		config.Logging.File, err = homedir.Expand(config.Logging.File)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't expand log file path")
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return config, nil
}

func (config *Config) Validate() error {
	switch config.Storage.Type {
	case StorageMemory, StoragePostgres:
	case StorageBadger:
		if config.Storage.Badger.Path == "" && !config.Storage.Badger.InMemory {
			return errors.New("badger storage needs a path or in_memory")
		}
	default:
		return errors.Errorf("unknown storage type: %s", config.Storage.Type)
	}
	switch config.Logging.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format: %s", config.Logging.Format)
	}
	return nil
}

// Catalog builds the table catalog out of the configured tables.
func (config *Config) Catalog() (*storage.Catalog, error) {
	return storage.NewCatalog(config.Tables)
}
