package db

import (
	"database/sql"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Get returns the value of column name.
func (r Row) Get(name string) mo.Option[any] {
	v, ok := r[name]
	return mo.TupleToOption(v, ok)
}

// Decode copies the row into out, a pointer to a struct whose fields are
// tagged with `db:"column"`. Values are converted weakly, so an int64 id
// decodes into a string field and "1" into an int.
func (r Row) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(r))
}

// Result holds the rows returned by a query together with their column order.
type Result struct {
	columns []string
	rows    []Row
}

// Row returns the first row, if any.
func (r Result) Row() mo.Option[Row] {
	if len(r.rows) == 0 {
		return mo.None[Row]()
	}
	return mo.Some(r.rows[0])
}

// Rows returns all rows. It never returns nil.
func (r Result) Rows() []Row {
	if r.rows == nil {
		return []Row{}
	}
	return r.rows
}

func (r Result) NumRows() int { return len(r.rows) }

func (r Result) Columns() []string { return r.columns }

// Decode copies all rows into out, a pointer to a slice of structs.
func (r Result) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(lo.Map(r.Rows(), func(row Row, _ int) map[string]any { return row }))
}

// scanRows reads every row of rows into a Result. []byte values are turned
// into strings since most drivers return text columns that way.
func scanRows(rows *sql.Rows) (Result, error) {
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read columns: %w", err)
	}
	out := Result{columns: cols}
	for rows.Next() {
		row := Row{}
		if err := sqlx.MapScan(rows, row); err != nil {
			return Result{}, err
		}
		for name, v := range row {
			if b, ok := v.([]byte); ok {
				row[name] = string(b)
			}
		}
		out.rows = append(out.rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return out, nil
}
