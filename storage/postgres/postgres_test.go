package postgres

import (
	"testing"

	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/cursorql"
	"github.com/cube2222/cursorql/storage"
)

func peopleTable(t *testing.T) *storage.Table {
	table := &storage.Table{
		Name: "people",
		Columns: []storage.Column{
			{Name: "id", Type: storage.TypeInt},
			{Name: "full name", Type: storage.TypeString},
		},
		PrimaryKey: []string{"id"},
	}
	require.NoError(t, table.Validate())
	return table
}

func TestStatements(t *testing.T) {
	table := peopleTable(t)
	assert.Equal(t, `INSERT INTO "people" ("id", "full name") VALUES ($1, $2)`, insertStatement(table))
	assert.Equal(t, `SELECT "id", "full name" FROM "people"`, selectStatement(table))
}

func TestArguments(t *testing.T) {
	args, err := arguments(cursorql.NewRow(1, nil, 2.5, true, "x"))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), nil, 2.5, true, "x"}, args)

	_, err = arguments(cursorql.NewRow([]interface{}{1}))
	assert.Error(t, err)
}

func TestTranslateError(t *testing.T) {
	table := peopleTable(t)
	row := cursorql.NewRow(1, "alice")

	err := translateError(table, row, pgx.PgError{Code: uniqueViolation})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	err = translateError(table, row, pgx.PgError{Code: "42P01"})
	assert.False(t, errors.Is(err, storage.ErrDuplicateKey))
	var writeErr *storage.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "people", writeErr.Table)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, cursorql.MakeInt(3), normalize(int16(3)))
	assert.Equal(t, cursorql.MakeNull(), normalize(nil))
	assert.Equal(t, cursorql.MakeString("[1 2]"), normalize([]int{1, 2}))
}
