package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

var selectRe = regexp.MustCompile(`(?i)^(\*|[A-Za-z_][A-Za-z0-9_]*(\.(\*|[A-Za-z_][A-Za-z0-9_]*))?)(\s+as\s+[A-Za-z_][A-Za-z0-9_]*)?$`)

type assignment struct {
	col   string
	value any
}

// Builder is a small query builder bound to one connection. Calls accumulate
// SELECT columns, WHERE conditions, ORDER BY, LIMIT and SET values until a
// terminal method (Get, Insert, Update, Delete, CountAllResults) runs the
// statement and clears that state for the next query.
//
// Invalid identifiers passed to chain methods are remembered and reported by
// the next terminal method.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	conn      Conn
	selects   []string
	conds     []Condition
	orders    []string
	limit     int
	offset    int
	sets      []assignment
	returning string
	errs      []error

	lastQuery string
	lastArgs  []any
	insertID  int64
	affected  int64
}

// New returns a Builder running its statements on conn.
func New(conn Conn) *Builder {
	return &Builder{conn: conn}
}

// Default returns a Builder on the default datasource.
func Default() (*Builder, error) {
	conn, ok := DefaultDS()
	if !ok || conn == nil {
		if err := InitErr(); err != nil {
			return nil, fmt.Errorf("default datasource is not initialized: %w", err)
		}
		return nil, fmt.Errorf("default datasource is not initialized")
	}
	return New(conn), nil
}

func (b *Builder) Conn() Conn { return b.conn }

func (b *Builder) fail(err error) *Builder {
	b.errs = append(b.errs, err)
	return b
}

// Select adds columns to the projection. "*", "t.*" and "col AS alias" are accepted.
func (b *Builder) Select(cols ...string) *Builder {
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if !selectRe.MatchString(c) {
			b.fail(fmt.Errorf("%w: %q", ErrInvalidIdentifier, c))
			continue
		}
		b.selects = append(b.selects, c)
	}
	return b
}

// SelectRaw adds a projection expression used verbatim, e.g. "COUNT(*) AS n".
func (b *Builder) SelectRaw(expr string) *Builder {
	b.selects = append(b.selects, expr)
	return b
}

// Where adds a condition on key. See Cond for the accepted key forms.
func (b *Builder) Where(key string, value any) *Builder {
	return b.WhereCond(Cond(key, value))
}

// WhereCond adds conditions, all of which must hold.
func (b *Builder) WhereCond(conds ...Condition) *Builder {
	for _, c := range conds {
		if c == nil {
			continue
		}
		if err := condErr(c); err != nil {
			b.fail(err)
			continue
		}
		b.conds = append(b.conds, c)
	}
	return b
}

// WhereMap adds one condition per entry of m, in key order.
func (b *Builder) WhereMap(m map[string]any) *Builder {
	keys := lo.Keys(m)
	slices.Sort(keys)
	for _, k := range keys {
		b.Where(k, m[k])
	}
	return b
}

// WhereIn adds "col IN (...)". An empty values list matches no rows.
func (b *Builder) WhereIn(col string, values ...any) *Builder {
	return b.WhereCond(In(col, values...))
}

// WhereRaw adds a raw predicate. Slice arguments are expanded for "IN (?)".
func (b *Builder) WhereRaw(clause string, args ...any) *Builder {
	return b.WhereCond(Raw(clause, args...))
}

// HasWhere reports whether any condition has been added since the last statement.
func (b *Builder) HasWhere() bool {
	clause, _ := And(b.conds...).Build()
	return clause != ""
}

// OrderBy adds an ORDER BY term. dir is "asc" (default) or "desc".
func (b *Builder) OrderBy(col string, dir ...string) *Builder {
	if err := checkIdent(col); err != nil {
		return b.fail(err)
	}
	d := strings.ToUpper(strings.TrimSpace(lo.FirstOr(dir, "ASC")))
	if d != "ASC" && d != "DESC" {
		return b.fail(fmt.Errorf("invalid order direction %q", d))
	}
	b.orders = append(b.orders, col+" "+d)
	return b
}

// Limit sets LIMIT and an optional OFFSET. A limit of 0 means no limit.
func (b *Builder) Limit(limit int, offset ...int) *Builder {
	b.limit = limit
	b.offset = lo.FirstOr(offset, 0)
	return b
}

// HasLimit reports whether a limit is pending.
func (b *Builder) HasLimit() bool { return b.limit > 0 }

// Set adds a column value for the next Insert or Update.
func (b *Builder) Set(col string, value any) *Builder {
	if err := checkIdent(col); err != nil {
		return b.fail(err)
	}
	if i := slices.IndexFunc(b.sets, func(a assignment) bool { return a.col == col }); i >= 0 {
		b.sets[i].value = value
		return b
	}
	b.sets = append(b.sets, assignment{col: col, value: value})
	return b
}

// SetMap adds every entry of data, in key order.
func (b *Builder) SetMap(data map[string]any) *Builder {
	keys := lo.Keys(data)
	slices.Sort(keys)
	for _, k := range keys {
		b.Set(k, data[k])
	}
	return b
}

// Returning names the generated key column read back after an insert on
// drivers that don't report LastInsertId.
func (b *Builder) Returning(col string) *Builder {
	if err := checkIdent(col); err != nil {
		return b.fail(err)
	}
	b.returning = col
	return b
}

// LastQuery returns the last statement sent to the database, placeholders rebound.
func (b *Builder) LastQuery() string { return b.lastQuery }

// LastArgs returns the arguments of the last statement.
func (b *Builder) LastArgs() []any { return b.lastArgs }

// InsertID returns the generated key of the last Insert.
func (b *Builder) InsertID() int64 { return b.insertID }

// AffectedRows returns the number of rows changed by the last Insert, Update or Delete.
func (b *Builder) AffectedRows() int64 { return b.affected }

// Reset drops any pending query state.
func (b *Builder) Reset() *Builder {
	b.selects = nil
	b.conds = nil
	b.orders = nil
	b.limit = 0
	b.offset = 0
	b.sets = nil
	b.returning = ""
	b.errs = nil
	return b
}

// prepare validates the pending state for a statement against table.
func (b *Builder) prepare(table string) error {
	return errors.Join(append(b.errs, b.checkTable(table))...)
}

func (b *Builder) checkTable(table string) error {
	if b.conn == nil {
		return fmt.Errorf("no connection")
	}
	if strings.TrimSpace(table) == "" {
		return ErrNoTable
	}
	return checkIdent(table)
}

func (b *Builder) where() (string, []any) {
	clause, args := And(b.conds...).Build()
	if clause == "" {
		return "", nil
	}
	return " WHERE " + clause, args
}

// finalize expands slice arguments, rebinds placeholders for the driver and
// records the statement.
func (b *Builder) finalize(query string, args []any) (string, []any, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	query = rebind(b.conn.DriverName(), query)
	b.lastQuery = query
	b.lastArgs = args
	return query, args, nil
}

func (b *Builder) selectSQL(table string) (string, []any) {
	cols := "*"
	if len(b.selects) > 0 {
		cols = strings.Join(b.selects, ", ")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, table)
	where, args := b.where()
	sb.WriteString(where)
	if len(b.orders) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(b.orders, ", "))
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
		if b.offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", b.offset)
		}
	}
	return sb.String(), args
}

// Get runs the pending SELECT against table.
func (b *Builder) Get(ctx context.Context, table string) (Result, error) {
	defer b.Reset()
	if err := b.prepare(table); err != nil {
		return Result{}, err
	}
	query, args, err := b.finalize(b.selectSQL(table))
	if err != nil {
		return Result{}, err
	}
	rows, err := b.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, wrapError(err)
	}
	return scanRows(rows)
}

// Insert writes data plus any pending Set values into table and returns the
// generated key, or 0 when the driver provides none.
func (b *Builder) Insert(ctx context.Context, table string, data map[string]any) (int64, error) {
	defer b.Reset()
	b.SetMap(data)
	if err := b.prepare(table); err != nil {
		return 0, err
	}
	if len(b.sets) == 0 {
		return 0, ErrNoSet
	}
	cols := lo.Map(b.sets, func(a assignment, _ int) string { return a.col })
	args := lo.Map(b.sets, func(a assignment, _ int) any { return a.value })
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), makePlaceholders(len(cols)))

	b.insertID, b.affected = 0, 0
	if b.returning != "" && isPostgres(b.conn.DriverName()) {
		query += " RETURNING " + b.returning
		query, args, err := b.finalize(query, args)
		if err != nil {
			return 0, err
		}
		rows, err := b.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, wrapError(err)
		}
		res, err := scanRows(rows)
		if err != nil {
			return 0, wrapError(err)
		}
		b.affected = int64(res.NumRows())
		if row, ok := res.Row().Get(); ok {
			b.insertID = cast.ToInt64(row[b.returning])
		}
		return b.insertID, nil
	}

	query, args, err := b.finalize(query, args)
	if err != nil {
		return 0, err
	}
	res, err := b.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapError(err)
	}
	b.affected, _ = res.RowsAffected()
	if id, err := res.LastInsertId(); err == nil {
		b.insertID = id
	}
	return b.insertID, nil
}

// Update writes data plus any pending Set values to the rows of table
// matching the pending conditions and returns the number of affected rows.
func (b *Builder) Update(ctx context.Context, table string, data map[string]any) (int64, error) {
	defer b.Reset()
	b.SetMap(data)
	if err := b.prepare(table); err != nil {
		return 0, err
	}
	if len(b.sets) == 0 {
		return 0, ErrNoSet
	}
	sets := lo.Map(b.sets, func(a assignment, _ int) string { return a.col + " = ?" })
	args := lo.Map(b.sets, func(a assignment, _ int) any { return a.value })
	where, whereArgs := b.where()
	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where)
	return b.exec(ctx, query, append(args, whereArgs...))
}

// Delete removes the rows of table matching the pending conditions. A delete
// without any condition is refused with ErrUnsafeDelete.
func (b *Builder) Delete(ctx context.Context, table string) (int64, error) {
	defer b.Reset()
	if err := b.prepare(table); err != nil {
		return 0, err
	}
	where, args := b.where()
	if where == "" {
		return 0, ErrUnsafeDelete
	}
	return b.exec(ctx, fmt.Sprintf("DELETE FROM %s%s", table, where), args)
}

func (b *Builder) exec(ctx context.Context, query string, args []any) (int64, error) {
	b.affected = 0
	query, args, err := b.finalize(query, args)
	if err != nil {
		return 0, err
	}
	res, err := b.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapError(err)
	}
	b.affected, err = res.RowsAffected()
	return b.affected, err
}

// CountAllResults counts the rows of table matching the pending conditions.
// Pending ORDER BY and LIMIT are ignored.
func (b *Builder) CountAllResults(ctx context.Context, table string) (int64, error) {
	defer b.Reset()
	if err := b.prepare(table); err != nil {
		return 0, err
	}
	where, args := b.where()
	return b.count(ctx, fmt.Sprintf("SELECT COUNT(*) AS numrows FROM %s%s", table, where), args)
}

// CountAll counts every row of table. Pending state, including errors from
// earlier chained calls, is discarded first.
func (b *Builder) CountAll(ctx context.Context, table string) (int64, error) {
	b.Reset()
	return b.CountAllResults(ctx, table)
}

func (b *Builder) count(ctx context.Context, query string, args []any) (int64, error) {
	query, args, err := b.finalize(query, args)
	if err != nil {
		return 0, err
	}
	rows, err := b.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, wrapError(err)
	}
	res, err := scanRows(rows)
	if err != nil {
		return 0, err
	}
	row, ok := res.Row().Get()
	if !ok {
		return 0, nil
	}
	return cast.ToInt64E(row["numrows"])
}

// ListFields returns the column names of table in their declared order.
// Pending query state is left untouched.
func (b *Builder) ListFields(ctx context.Context, table string) ([]string, error) {
	if err := b.checkTable(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE 1=0", table)
	rows, err := b.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapError(err)
	}
	defer func() { _ = rows.Close() }()
	return rows.Columns()
}
