package storage

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/cube2222/cursorql"
)

type ColumnType string

const (
	TypeAny    ColumnType = "any"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeString ColumnType = "string"
	TypeBool   ColumnType = "bool"
)

func (t ColumnType) accepts(v cursorql.Value) bool {
	switch v.(type) {
	case cursorql.Null:
		return true
	case cursorql.Int:
		return t == TypeAny || t == TypeInt || t == TypeFloat
	case cursorql.Float:
		return t == TypeAny || t == TypeFloat
	case cursorql.String:
		return t == TypeAny || t == TypeString
	case cursorql.Bool:
		return t == TypeAny || t == TypeBool
	}
	return t == TypeAny
}

type Column struct {
	Name    string     `yaml:"name"`
	Type    ColumnType `yaml:"type"`
	NotNull bool       `yaml:"not_null"`
}

type Table struct {
	Name       string   `yaml:"name"`
	Columns    []Column `yaml:"columns"`
	PrimaryKey []string `yaml:"primary_key"`

	keyIndices []int
}

// Validate checks the definition and resolves the primary key columns.
func (t *Table) Validate() error {
	if t.Name == "" {
		return errors.New("table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return errors.Errorf("table %s has no columns", t.Name)
	}
	positions := make(map[string]int, len(t.Columns))
	for i := range t.Columns {
		if t.Columns[i].Type == "" {
			t.Columns[i].Type = TypeAny
		}
		switch t.Columns[i].Type {
		case TypeAny, TypeInt, TypeFloat, TypeString, TypeBool:
		default:
			return errors.Errorf("column %s of table %s has unknown type %s", t.Columns[i].Name, t.Name, t.Columns[i].Type)
		}
		if _, ok := positions[t.Columns[i].Name]; ok {
			return errors.Errorf("duplicate column %s in table %s", t.Columns[i].Name, t.Name)
		}
		positions[t.Columns[i].Name] = i
	}
	t.keyIndices = t.keyIndices[:0]
	for _, name := range t.PrimaryKey {
		i, ok := positions[name]
		if !ok {
			return errors.Errorf("primary key column %s not found in table %s", name, t.Name)
		}
		t.keyIndices = append(t.keyIndices, i)
	}
	return nil
}

// Key returns the primary key values of the row, or nil if the table has no primary key.
// Ints in float columns are keyed as floats, so 1 and 1.0 collide.
func (t *Table) Key(row cursorql.Row) cursorql.Row {
	if len(t.keyIndices) == 0 {
		return nil
	}
	out := make(cursorql.Row, len(t.keyIndices))
	for i, index := range t.keyIndices {
		if index >= len(row) {
			out[i] = cursorql.MakeNull()
			continue
		}
		out[i] = row[index]
		if v, ok := row[index].(cursorql.Int); ok && t.Columns[index].Type == TypeFloat {
			out[i] = cursorql.MakeFloat(float64(v))
		}
	}
	return out
}

func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i := range t.Columns {
		out[i] = t.Columns[i].Name
	}
	return out
}

// ConstraintError describes a row rejected by the catalog.
type ConstraintError struct {
	Table  string
	Column string
	Reason string
}

func (e *ConstraintError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("table %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("table %s, column %s: %s", e.Table, e.Column, e.Reason)
}

// Catalog holds the table definitions and checks rows against them before they are written.
type Catalog struct {
	tables map[string]*Table
}

func NewCatalog(tables []*Table) (*Catalog, error) {
	out := &Catalog{
		tables: make(map[string]*Table, len(tables)),
	}
	for _, table := range tables {
		if err := table.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid table definition")
		}
		if _, ok := out.tables[table.Name]; ok {
			return nil, errors.Errorf("table %s defined more than once", table.Name)
		}
		out.tables[table.Name] = table
	}
	return out, nil
}

func (c *Catalog) Table(name string) (*Table, error) {
	table, ok := c.tables[name]
	if !ok {
		return nil, UnknownTable(name)
	}
	return table, nil
}

// Tables lists the tables ordered by name.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.tables))
	for _, table := range c.tables {
		out = append(out, table)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func (c *Catalog) Check(table string, row cursorql.Row) error {
	t, err := c.Table(table)
	if err != nil {
		return err
	}
	if len(row) != len(t.Columns) {
		return &ConstraintError{
			Table:  table,
			Reason: fmt.Sprintf("row has %d columns, table has %d", len(row), len(t.Columns)),
		}
	}
	for i, column := range t.Columns {
		if _, null := row[i].(cursorql.Null); null && column.NotNull {
			return &ConstraintError{
				Table:  table,
				Column: column.Name,
				Reason: "null value in not null column",
			}
		}
		if !column.Type.accepts(row[i]) {
			return &ConstraintError{
				Table:  table,
				Column: column.Name,
				Reason: fmt.Sprintf("value %s is not of type %s", row[i], column.Type),
			}
		}
	}
	return nil
}
