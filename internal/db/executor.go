// Package db executes generated SQL against a local SQLite database and
// renders results in a form suitable for conversational answers.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"sqltalk/internal/logging"
)

// Result holds an executed query's output with every value rendered as
// text. NULLs appear as "NULL".
type Result struct {
	Columns []string
	Rows    [][]string
}

// Format renders the result as a compact answer. At most maxRows rows are
// shown; the remainder is summarized.
func (r *Result) Format(maxRows int) string {
	if len(r.Rows) == 0 {
		return "The query returned no rows."
	}
	if maxRows <= 0 {
		maxRows = len(r.Rows)
	}
	if len(r.Rows) == 1 && len(r.Columns) == 1 {
		return fmt.Sprintf("%s: %s", r.Columns[0], r.Rows[0][0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s):\n", len(r.Rows))
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteByte('\n')
	shown := r.Rows
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, row := range shown {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	if len(r.Rows) > maxRows {
		fmt.Fprintf(&b, "... and %d more row(s)", len(r.Rows)-maxRows)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Executor wraps a SQLite database handle.
type Executor struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*Executor, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	logging.Get(logging.CategoryDB).Info("Opened database %s", path)
	return &Executor{db: handle, path: path}, nil
}

// Close releases the underlying handle.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Exec runs a statement that returns no rows, such as DDL or seeding.
func (e *Executor) Exec(ctx context.Context, sqlText string, args ...any) error {
	_, err := e.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Query runs sqlText and materializes all rows as strings.
func (e *Executor) Query(ctx context.Context, sqlText string) (*Result, error) {
	t := logging.StartTimer(logging.CategoryDB, "query")
	defer t.Stop()

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	res := &Result{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = renderValue(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return res, nil
}

// DescribeSchema renders the CREATE statements of all user tables, one
// per line, for inclusion in a generation prompt.
func (e *Executor) DescribeSchema(ctx context.Context) (string, error) {
	const q = `SELECT sql FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
		ORDER BY name`
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var ddl string
		if err := rows.Scan(&ddl); err != nil {
			return "", fmt.Errorf("describe schema: %w", err)
		}
		stmts = append(stmts, ddl+";")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}
	return strings.Join(stmts, "\n"), nil
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
