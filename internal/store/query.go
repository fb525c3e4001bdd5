// In file: internal/store/query.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Op is a comparison supported in filters.
type Op string

const (
	OpEq   Op = "eq"
	OpGte  Op = "gte"
	OpLte  Op = "lte"
	OpLike Op = "like" // case-insensitive substring match
)

// Filter restricts a Select to rows where Column <Op> Value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq, Gte, Lte and Like are shorthands for building filters.
func Eq(column string, value any) Filter   { return Filter{Column: column, Op: OpEq, Value: value} }
func Gte(column string, value any) Filter  { return Filter{Column: column, Op: OpGte, Value: value} }
func Lte(column string, value any) Filter  { return Filter{Column: column, Op: OpLte, Value: value} }
func Like(column string, value string) Filter {
	return Filter{Column: column, Op: OpLike, Value: value}
}

// Query describes a filtered, ordered, limited read of one table.
type Query struct {
	Table   string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Row is a single result row keyed by column name. TEXT columns come back as
// string, INTEGER as int64, REAL as float64 and NULL as nil.
type Row map[string]any

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid column name %q", name)
	}
	return nil
}

// Select runs q and returns the matching rows.
func (db *DB) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := checkTable(q.Table); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	for _, f := range q.Filters {
		if err := checkIdent(f.Column); err != nil {
			return nil, err
		}
		switch f.Op {
		case OpEq:
			where = append(where, f.Column+" = ?")
			args = append(args, f.Value)
		case OpGte:
			where = append(where, f.Column+" >= ?")
			args = append(args, f.Value)
		case OpLte:
			where = append(where, f.Column+" <= ?")
			args = append(args, f.Value)
		case OpLike:
			pattern := "%" + fmt.Sprint(f.Value) + "%"
			if db.dialect == DialectPostgres {
				where = append(where, f.Column+" ILIKE ?")
			} else {
				where = append(where, "LOWER("+f.Column+") LIKE LOWER(?)")
			}
			args = append(args, pattern)
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(q.Table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if q.OrderBy != "" {
		if err := checkIdent(q.OrderBy); err != nil {
			return nil, err
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := db.sql.QueryContext(ctx, db.Rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", q.Table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Get returns the row of table whose primary key column "id" equals id.
func (db *DB) Get(ctx context.Context, table, id string) (Row, error) {
	rows, err := db.Select(ctx, Query{Table: table, Filters: []Filter{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return rows[0], nil
}

// Insert writes values into table and returns the stored row. An "id" is
// generated when absent and "created_at" is filled in when the caller left it out.
func (db *DB) Insert(ctx context.Context, table string, values Row) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	values = withDefaults(values, db.Now())

	cols, args, err := columnsAndArgs(values)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := db.sql.ExecContext(ctx, db.Rebind(stmt), args...); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	return db.Get(ctx, table, fmt.Sprint(values["id"]))
}

// Upsert inserts values or, when a row with the same conflict columns already
// exists, updates every non-key column of that row. The stored row is returned.
func (db *DB) Upsert(ctx context.Context, table string, values Row, conflict ...string) (Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if len(conflict) == 0 {
		return nil, errors.New("upsert requires at least one conflict column")
	}
	values = withDefaults(values, db.Now())

	cols, args, err := columnsAndArgs(values)
	if err != nil {
		return nil, err
	}
	isKey := map[string]bool{"id": true, "created_at": true}
	for _, c := range conflict {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
		isKey[c] = true
	}
	var sets []string
	for _, c := range cols {
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(conflict, ", "), action)
	if _, err := db.sql.ExecContext(ctx, db.Rebind(stmt), args...); err != nil {
		return nil, fmt.Errorf("upsert into %s: %w", table, err)
	}

	var filters []Filter
	for _, c := range conflict {
		filters = append(filters, Eq(c, values[c]))
	}
	rows, err := db.Select(ctx, Query{Table: table, Filters: filters, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s after upsert: %w", table, ErrNotFound)
	}
	return rows[0], nil
}

// Update sets values on the row of table identified by id.
func (db *DB) Update(ctx context.Context, table, id string, values Row) error {
	if err := checkTable(table); err != nil {
		return err
	}
	cols, args, err := columnsAndArgs(values)
	if err != nil {
		return err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := db.sql.ExecContext(ctx, db.Rebind(stmt), append(args, id)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

func withDefaults(values Row, now string) Row {
	out := make(Row, len(values)+2)
	for k, v := range values {
		out[k] = v
	}
	if id, ok := out["id"]; !ok || id == nil || id == "" {
		out["id"] = uuid.NewString()
	}
	if _, ok := out["created_at"]; !ok {
		out["created_at"] = now
	}
	return out
}

// columnsAndArgs returns the columns of values in a stable order.
func columnsAndArgs(values Row) ([]string, []any, error) {
	if len(values) == 0 {
		return nil, nil, errors.New("no values given")
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		if err := checkIdent(c); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return cols, args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
