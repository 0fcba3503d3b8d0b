package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	errx "github.com/stockwise-ai/server/internal/core/error"
)

const (
	sampleRows   = 3
	maxResultLen = 8 * 1024
	maxCellLen   = 100
)

// Dialect names the SQL variant used in prompts.
func (s *Store) Dialect() string {
	return "sqlite"
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, errx.WrapSQL(fmt.Errorf("list tables: %w", err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errx.WrapSQL(err)
		}
		names = append(names, name)
	}
	return names, errx.WrapSQL(rows.Err())
}

// ListTables returns the user tables as a comma separated list.
func (s *Store) ListTables(ctx context.Context) (string, error) {
	names, err := s.tableNames(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(names, ", "), nil
}

// TableInfo returns the CREATE statement and a few sample rows for each of
// the named tables. Unknown names are reported in the text.
func (s *Store) TableInfo(ctx context.Context, tables []string) (string, error) {
	known, err := s.tableNames(ctx)
	if err != nil {
		return "", err
	}

	var missing []string
	var wanted []string
	for _, t := range tables {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !slices.Contains(known, t) {
			missing = append(missing, t)
			continue
		}
		wanted = append(wanted, t)
	}
	if len(missing) > 0 {
		return fmt.Sprintf("Error: table_names {%s} not found in database", strings.Join(missing, ", ")), nil
	}
	if len(wanted) == 0 {
		wanted = known
	}

	var b strings.Builder
	for i, t := range wanted {
		if i > 0 {
			b.WriteString("\n\n")
		}
		var ddl string
		if err := s.db.QueryRowContext(ctx,
			`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, t).Scan(&ddl); err != nil {
			return "", errx.WrapSQL(fmt.Errorf("read schema of %s: %w", t, err))
		}
		b.WriteString(strings.TrimSpace(ddl))

		sample, err := s.sample(ctx, t)
		if err != nil {
			return "", err
		}
		b.WriteString("\n\n/*\n")
		fmt.Fprintf(&b, "%d rows from %s table:\n", sampleRows, t)
		b.WriteString(sample)
		b.WriteString("*/")
	}
	return b.String(), nil
}

func (s *Store) sample(ctx context.Context, table string) (string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT %d`, table, sampleRows))
	if err != nil {
		return "", errx.WrapSQL(fmt.Errorf("sample %s: %w", table, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", errx.WrapSQL(err)
	}
	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))
	b.WriteString("\n")
	for rows.Next() {
		vals, err := scanRow(rows, len(cols))
		if err != nil {
			return "", errx.WrapSQL(err)
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = plainCell(v)
		}
		b.WriteString(strings.Join(cells, "\t"))
		b.WriteString("\n")
	}
	return b.String(), errx.WrapSQL(rows.Err())
}

// RunQuery executes query. Statement errors are returned as "Error: ..."
// text so the caller can show them to the model and let it retry.
func (s *Store) RunQuery(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Error: empty query", nil
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return "", err
	}

	if !returnsRows(query) {
		res, err := s.db.ExecContext(ctx, query)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		n, _ := res.RowsAffected()
		return fmt.Sprintf("Query executed successfully. Rows affected: %d", n), nil
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	var tuples []string
	for rows.Next() {
		vals, err := scanRow(rows, len(cols))
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = literalCell(v)
		}
		if len(cells) == 1 {
			tuples = append(tuples, "("+cells[0]+",)")
		} else {
			tuples = append(tuples, "("+strings.Join(cells, ", ")+")")
		}
	}
	if err := rows.Err(); err != nil {
		return "Error: " + err.Error(), nil
	}

	out := "[" + strings.Join(tuples, ", ") + "]"
	if len(out) > maxResultLen {
		out = out[:maxResultLen] + "... (truncated)"
	}
	return out, nil
}

func returnsRows(query string) bool {
	fields := strings.Fields(strings.ToUpper(query))
	if len(fields) == 0 {
		return false
	}
	switch strings.TrimLeft(fields[0], "(") {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

func scanRow(rows *sql.Rows, n int) ([]any, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, nil
}

func truncateCell(s string) string {
	if len(s) > maxCellLen {
		return s[:maxCellLen] + "..."
	}
	return s
}

func plainCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case []byte:
		return truncateCell(string(x))
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return truncateCell(fmt.Sprint(x))
	}
}

func literalCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + strings.ReplaceAll(truncateCell(x), "'", `\'`) + "'"
	case []byte:
		return "'" + strings.ReplaceAll(truncateCell(string(x)), "'", `\'`) + "'"
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprint(x)
	}
}
