package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/execution"
	"github.com/cube2222/cursorql/storage"
)

const uniqueViolation = "23505"

type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type logger struct {
	log *logrus.Entry
}

func (l *logger) Log(level pgx.LogLevel, msg string, data map[string]interface{}) {
	entry := l.log.WithFields(logrus.Fields(data))
	switch level {
	case pgx.LogLevelError:
		entry.Error(msg)
	case pgx.LogLevelWarn:
		entry.Warn(msg)
	case pgx.LogLevelInfo:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
}

// Storage writes rows into existing postgres tables of the same name and columns.
// A single connection is shared, so calls are serialized.
type Storage struct {
	mutex   sync.Mutex
	conn    *pgx.Conn
	catalog *storage.Catalog
}

func Connect(cfg Config, catalog *storage.Catalog, log *logrus.Entry) (*Storage, error) {
	conn, err := pgx.Connect(pgx.ConnConfig{
		Host:     cfg.Host,
		Port:     uint16(cfg.Port),
		User:     cfg.User,
		Database: cfg.Database,
		Password: cfg.Password,
		Logger:   &logger{log: log.WithField("component", "postgres")},
	})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect to database")
	}
	return &Storage{
		conn:    conn,
		catalog: catalog,
	}, nil
}

func insertStatement(table *storage.Table) string {
	placeholders := make([]string, len(table.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table.Name}.Sanitize(),
		columnList(table),
		strings.Join(placeholders, ", "),
	)
}

func selectStatement(table *storage.Table) string {
	return fmt.Sprintf("SELECT %s FROM %s", columnList(table), pgx.Identifier{table.Name}.Sanitize())
}

func columnList(table *storage.Table) string {
	columns := make([]string, len(table.Columns))
	for i := range table.Columns {
		columns[i] = pgx.Identifier{table.Columns[i].Name}.Sanitize()
	}
	return strings.Join(columns, ", ")
}

func arguments(row cursorql.Row) ([]interface{}, error) {
	out := make([]interface{}, len(row))
	for i := range row {
		switch v := row[i].(type) {
		case cursorql.Null:
			out[i] = nil
		case cursorql.Int:
			out[i] = int64(v)
		case cursorql.Float:
			out[i] = float64(v)
		case cursorql.Bool:
			out[i] = bool(v)
		case cursorql.String:
			out[i] = string(v)
		default:
			return nil, errors.Errorf("unsupported value %s in column %d", row[i], i)
		}
	}
	return out, nil
}

// translateError maps postgres failures onto the storage error types.
func translateError(table *storage.Table, row cursorql.Row, err error) error {
	if pgErr, ok := errors.Cause(err).(pgx.PgError); ok && pgErr.Code == uniqueViolation {
		return storage.DuplicateKey(table.Name, table.Key(row))
	}
	return &storage.WriteError{Table: table.Name, Key: table.Key(row), Err: err}
}

func (s *Storage) WriteRow(ctx context.Context, table string, row cursorql.Row) error {
	def, err := s.catalog.Table(table)
	if err != nil {
		return err
	}
	args, err := arguments(row)
	if err != nil {
		return &storage.WriteError{Table: table, Err: err}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, err := s.conn.ExecEx(ctx, insertStatement(def), nil, args...); err != nil {
		return translateError(def, row, err)
	}
	return nil
}

// ScanRows reads the whole table upfront, the connection can't be shared with a pending result set.
func (s *Storage) ScanRows(ctx context.Context, table string) (execution.RowIterator, error) {
	def, err := s.catalog.Table(table)
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows, err := s.conn.QueryEx(ctx, selectStatement(def), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't query table %s", table)
	}
	defer rows.Close()

	var out []cursorql.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, "couldn't get row values")
		}
		row := make(cursorql.Row, len(values))
		for i := range values {
			row[i] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "couldn't read table %s", table)
	}
	return storage.NewSliceIterator(out), nil
}

func normalize(value interface{}) cursorql.Value {
	switch value.(type) {
	case nil, bool, int16, int32, int64, float32, float64, string, []byte:
		return cursorql.NormalizeType(value)
	}
	return cursorql.MakeString(fmt.Sprint(value))
}

func (s *Storage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.conn.Close()
}
