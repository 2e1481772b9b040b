package model

import (
	"fmt"

	"github.com/kcmvp/basemodel/db"
)

// setWhere turns positional filter arguments into builder conditions:
//
//	()                  no filter
//	(map, string keys)  equality per key, slice values become IN
//	(db.Condition)      the condition as is, e.g. db.Expr("age > 18")
//	(slice)             primary key IN (...)
//	(value)             primary key equality
//	(col, slice)        col IN (...)
//	(col, value)        col = value; col may carry an operator, e.g. "age >"
//
// Anything else fails with ErrWhereArgs and discards pending conditions.
func (m *Model) setWhere(where []any) error {
	switch len(where) {
	case 0:
		return nil
	case 1:
		w := where[0]
		if cond, ok := w.(db.Condition); ok {
			m.b.WhereCond(cond)
			return nil
		}
		if filters, ok := db.AsMap(w); ok {
			m.b.WhereMap(filters)
			return nil
		}
		if list, ok := db.AsList(w); ok {
			m.b.WhereIn(m.pk, list...)
			return nil
		}
		m.b.WhereCond(db.Eq(m.pk, w))
		return nil
	case 2:
		col, ok := where[0].(string)
		if !ok {
			m.b.Reset()
			return fmt.Errorf("%w: column must be a string, got %T", ErrWhereArgs, where[0])
		}
		m.b.Where(col, where[1])
		return nil
	}
	m.b.Reset()
	return fmt.Errorf("%w: expected at most 2 arguments, got %d", ErrWhereArgs, len(where))
}
