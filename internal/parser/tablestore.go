package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/csv-chat/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

var (
	ErrReadOnlyQuery   = errors.New("only a single read-only statement (SELECT, WITH, DESCRIBE, SUMMARIZE, SHOW) is allowed")
	ErrUnknownTable    = errors.New("unknown table")
	ErrTableStoreClose = errors.New("table store is closed")
)

// StoreOptions tunes the in-memory DuckDB instance.
type StoreOptions struct {
	MemoryLimit string // e.g. "512MB"
	Threads     int
	MaxQueries  int // concurrent queries per store
}

// DefaultStoreOptions returns conservative per-session settings.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{MemoryLimit: "512MB", Threads: 2, MaxQueries: 2}
}

// TableStore keeps a session's tables in an in-memory DuckDB database so they
// can be filtered and aggregated with SQL. Nothing is written to disk.
type TableStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	tables []*models.Table
	closed bool

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// QueryResult is the stringified result of a read-only query.
type QueryResult struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// TableDescription is a table's schema as DuckDB sees it.
type TableDescription struct {
	SQLName  string
	FileName string
	Columns  []ColumnDescription
	RowCount int64
}

// ColumnDescription is one column of a TableDescription.
type ColumnDescription struct {
	Name     string
	DataType string
}

// NewTableStore opens an empty in-memory DuckDB database.
func NewTableStore(opts StoreOptions) (*TableStore, error) {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 1
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			"SET enable_external_access=false",
			"PRAGMA enable_progress_bar=false",
		}
		if opts.MemoryLimit != "" {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
		}
		if opts.Threads > 0 {
			pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	return &TableStore{
		db:       sql.OpenDB(connector),
		querySem: make(chan struct{}, opts.MaxQueries),
	}, nil
}

// LoadError lists the tables Load could not create, keyed by table ID.
// Every other table of the set was loaded.
type LoadError struct {
	Failed map[string]error
}

func (e *LoadError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	msgs := make([]string, len(ids))
	for i, id := range ids {
		msgs[i] = e.Failed[id].Error()
	}
	return fmt.Sprintf("%d table(s) failed to load: %s", len(ids), strings.Join(msgs, "; "))
}

// Load replaces every table in the store with the given set. A table that
// cannot be created is dropped again and reported through a *LoadError;
// the rest of the set is still loaded.
func (ts *TableStore) Load(ctx context.Context, tables []*models.Table) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.closed {
		return ErrTableStoreClose
	}

	conn, err := ts.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	for _, t := range ts.tables {
		if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(t.SQLName)); err != nil {
			return fmt.Errorf("dropping %s: %w", t.SQLName, err)
		}
	}
	ts.tables = nil

	failed := make(map[string]error)
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, createTableSQL(t)); err != nil {
			failed[t.ID] = fmt.Errorf("creating %s: %w", t.SQLName, err)
			continue
		}
		if err := appendRows(conn, t); err != nil {
			failed[t.ID] = fmt.Errorf("loading %s: %w", t.SQLName, err)
			if _, dropErr := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(t.SQLName)); dropErr != nil {
				return fmt.Errorf("dropping %s: %w", t.SQLName, dropErr)
			}
			continue
		}
		ts.tables = append(ts.tables, t)
	}

	if len(failed) > 0 {
		return &LoadError{Failed: failed}
	}
	return nil
}

// appendRows writes a table's rows using the native Appender API.
func appendRows(conn *sql.Conn, t *models.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}

	return conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", t.SQLName)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		values := make([]driver.Value, len(t.Columns))
		for i, row := range t.Rows {
			for ci, col := range t.Columns {
				values[ci] = ParseValue(row[ci], col.Type)
			}
			if err := appender.AppendRow(values...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}

		return appender.Flush()
	})
}

func createTableSQL(t *models.Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c.Name) + " " + duckType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.SQLName), strings.Join(defs, ", "))
}

func duckType(t models.ColumnType) string {
	switch t {
	case models.ColumnTypeInteger:
		return "BIGINT"
	case models.ColumnTypeFloat:
		return "DOUBLE"
	case models.ColumnTypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Tables returns the loaded tables in load order.
func (ts *TableStore) Tables() []*models.Table {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	out := make([]*models.Table, len(ts.tables))
	copy(out, ts.tables)
	return out
}

// Table finds a loaded table by its SQL name (case-insensitive) or file name.
func (ts *TableStore) Table(name string) (*models.Table, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	for _, t := range ts.tables {
		if strings.EqualFold(t.SQLName, name) || t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Query runs a single read-only statement and returns at most maxRows rows.
func (ts *TableStore) Query(ctx context.Context, query string, maxRows int) (*QueryResult, error) {
	stmt, err := readOnlyStatement(query)
	if err != nil {
		return nil, err
	}
	return ts.query(ctx, stmt, maxRows)
}

// query runs stmt inside a transaction that is always rolled back, so a
// write can never outlive the call.
func (ts *TableStore) query(ctx context.Context, stmt string, maxRows int) (*QueryResult, error) {
	release, err := ts.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.closed {
		return nil, ErrTableStoreClose
	}

	tx, err := ts.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin query transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols, Rows: make([][]string, 0)}
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}

	return result, rows.Err()
}

// Describe returns a table's columns and row count.
func (ts *TableStore) Describe(ctx context.Context, name string) (*TableDescription, error) {
	t, ok := ts.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}

	release, err := ts.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if ts.closed {
		return nil, ErrTableStoreClose
	}

	desc := &TableDescription{SQLName: t.SQLName, FileName: t.Name}

	rows, err := ts.db.QueryContext(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position",
		t.SQLName)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c ColumnDescription
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			rows.Close()
			return nil, err
		}
		desc.Columns = append(desc.Columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := ts.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(t.SQLName)).Scan(&desc.RowCount); err != nil {
		return nil, err
	}
	return desc, nil
}

func (ts *TableStore) acquire(ctx context.Context) (func(), error) {
	select {
	case ts.querySem <- struct{}{}:
		return func() { <-ts.querySem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the database.
func (ts *TableStore) Close() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.closed {
		return nil
	}
	ts.closed = true
	ts.tables = nil
	return ts.db.Close()
}

// readOnlyStatements are the statement prefixes the agent may run.
var readOnlyStatements = []string{"SELECT", "WITH", "DESCRIBE", "SUMMARIZE", "SHOW", "FROM", "VALUES", "PRAGMA TABLE_INFO"}

// readOnlyStatement trims a query to a single statement and checks that it
// only reads data.
func readOnlyStatement(query string) (string, error) {
	stmt := strings.TrimSpace(query)
	for strings.HasSuffix(stmt, ";") {
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	}
	if stmt == "" || hasStatementSeparator(stmt) {
		return "", ErrReadOnlyQuery
	}

	upper := strings.ToUpper(stmt)
	for _, prefix := range readOnlyStatements {
		if strings.HasPrefix(upper, prefix) {
			if len(upper) == len(prefix) || !isIdentChar(upper[len(prefix)]) {
				return stmt, nil
			}
		}
	}
	return "", ErrReadOnlyQuery
}

// hasStatementSeparator reports a ';' outside quotes and comments.
func hasStatementSeparator(s string) bool {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				// Unterminated comment: refuse rather than guess.
				return true
			}
			i += end + 3
		case c == ';':
			return true
		}
	}
	return false
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case duckdb.Decimal:
		return strconv.FormatFloat(val.Float64(), 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// Markdown renders the result as a pipe table for the language model.
func (r *QueryResult) Markdown() string {
	if len(r.Columns) == 0 {
		return "(no columns)"
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeCells(r.Columns), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(r.Columns)) + "\n")
	for _, row := range r.Rows {
		b.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	if len(r.Rows) == 0 {
		b.WriteString("(0 rows)\n")
	}
	if r.Truncated {
		fmt.Fprintf(&b, "(truncated to %d rows)\n", len(r.Rows))
	}
	return b.String()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}
