// Package models contains domain types for the CSV chat backend.
package models

// ColumnType is the inferred type of a table column.
type ColumnType string

const (
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeFloat   ColumnType = "float"
	ColumnTypeBoolean ColumnType = "boolean"
	ColumnTypeString  ColumnType = "string"
)

// Column is a named, typed column of a Table.
type Column struct {
	Name string     `json:"name" msgpack:"name"`
	Type ColumnType `json:"type" msgpack:"type"`
}

// Table is the parsed form of one uploaded delimited-text file.
// Rows hold the raw cell text; a Table is never mutated after load.
type Table struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`    // original file name
	SQLName string     `json:"sqlName"` // identifier inside the session's DuckDB
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"-"`
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Head returns at most n leading rows.
func (t *Table) Head(n int) [][]string {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// Info returns the table metadata without its rows.
func (t *Table) Info() TableInfo {
	return TableInfo{
		ID:       t.ID,
		Name:     t.Name,
		SQLName:  t.SQLName,
		Columns:  t.Columns,
		RowCount: len(t.Rows),
	}
}

// TableInfo describes a loaded table.
type TableInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	SQLName  string   `json:"sqlName"`
	Columns  []Column `json:"columns"`
	RowCount int      `json:"rowCount"`
}
