package db

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Condition is a single WHERE predicate. Build returns the SQL fragment with
// '?' placeholders and its arguments. An empty fragment means "no condition".
type Condition interface {
	Build() (string, []any)
}

// Expr is a raw SQL predicate used verbatim, e.g. Expr("deleted_at IS NULL").
//
// Placeholders are rebound per driver by plain substitution, so on postgres
// every '?' is rewritten, including one inside a string literal such as
// Expr("note = 'why?'"). Pass such literals as arguments through Raw instead.
type Expr string

func (e Expr) Build() (string, []any) { return string(e), nil }

// condition is the eager Condition returned by the constructors below. It
// carries an error for invalid column names so the Builder can report it at
// execution time instead of sending broken SQL.
type condition struct {
	clause string
	args   []any
	err    error
}

func (c condition) Build() (string, []any) { return c.clause, c.args }

func (c condition) Err() error { return c.err }

// condErr returns the construction error of cond, if it has one.
func condErr(cond Condition) error {
	if e, ok := cond.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	// keyRe splits "age >=" into the column and its operator.
	keyRe = regexp.MustCompile(`(?i)^\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)\s*(=|!=|<>|<=|>=|<|>|not\s+like|like|is\s+not|is|not\s+in|in)?\s*$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// ValidIdentifier reports whether name is a plain or table-qualified identifier.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

func checkIdent(name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func combine(sep string, conds []Condition) Condition {
	clauses := make([]string, 0, len(conds))
	var allArgs []any
	var errs []error
	for _, c := range conds {
		if c == nil {
			continue
		}
		if err := condErr(c); err != nil {
			errs = append(errs, err)
			continue
		}
		clause, args := c.Build()
		if clause == "" {
			continue
		}
		clauses = append(clauses, clause)
		allArgs = append(allArgs, args...)
	}
	if len(errs) > 0 {
		return condition{err: errors.Join(errs...)}
	}
	switch len(clauses) {
	case 0:
		return condition{}
	case 1:
		return condition{clause: clauses[0], args: allArgs}
	}
	return condition{clause: fmt.Sprintf("(%s)", strings.Join(clauses, sep)), args: allArgs}
}

// And combines conditions with AND, skipping nil and empty ones.
func And(conds ...Condition) Condition {
	return combine(" AND ", conds)
}

// Or combines conditions with OR, skipping nil and empty ones.
func Or(conds ...Condition) Condition {
	return combine(" OR ", conds)
}

func op(col, operator string, value any) Condition {
	if err := checkIdent(col); err != nil {
		return condition{err: err}
	}
	return condition{clause: fmt.Sprintf("%s %s ?", col, operator), args: []any{value}}
}

// Eq creates "col = ?". A nil value yields "col IS NULL".
func Eq(col string, value any) Condition {
	if value == nil {
		return IsNull(col)
	}
	return op(col, "=", value)
}

// Ne creates "col != ?". A nil value yields "col IS NOT NULL".
func Ne(col string, value any) Condition {
	if value == nil {
		return IsNotNull(col)
	}
	return op(col, "!=", value)
}

func Gt(col string, value any) Condition  { return op(col, ">", value) }
func Gte(col string, value any) Condition { return op(col, ">=", value) }
func Lt(col string, value any) Condition  { return op(col, "<", value) }
func Lte(col string, value any) Condition { return op(col, "<=", value) }

func Like(col string, pattern string) Condition { return op(col, "LIKE", pattern) }

func IsNull(col string) Condition {
	if err := checkIdent(col); err != nil {
		return condition{err: err}
	}
	return condition{clause: col + " IS NULL"}
}

func IsNotNull(col string) Condition {
	if err := checkIdent(col); err != nil {
		return condition{err: err}
	}
	return condition{clause: col + " IS NOT NULL"}
}

// In creates "col IN (?, ...)". An empty value list yields the always-false
// predicate "1=0" so the statement stays valid and matches nothing.
func In(col string, values ...any) Condition {
	return in(col, "IN", "1=0", values)
}

// NotIn creates "col NOT IN (?, ...)". An empty value list matches everything.
func NotIn(col string, values ...any) Condition {
	return in(col, "NOT IN", "1=1", values)
}

func in(col, operator, empty string, values []any) Condition {
	if err := checkIdent(col); err != nil {
		return condition{err: err}
	}
	if len(values) == 0 {
		return condition{clause: empty}
	}
	return condition{clause: fmt.Sprintf("%s %s (%s)", col, operator, makePlaceholders(len(values))), args: values}
}

// Raw creates a predicate from a SQL fragment with '?' placeholders.
func Raw(clause string, args ...any) Condition {
	return condition{clause: clause, args: args}
}

// Cond builds a predicate from a key that may carry its operator, the way
// query builders traditionally accept them: "name" means equality, "age >"
// or "name LIKE" use the given operator. A slice value turns equality into
// IN and a nil value into IS NULL.
func Cond(key string, value any) Condition {
	m := keyRe.FindStringSubmatch(key)
	if m == nil {
		return condition{err: fmt.Errorf("%w: %q", ErrInvalidIdentifier, key)}
	}
	col := m[1]
	operator := strings.ToUpper(spaceRe.ReplaceAllString(m[2], " "))
	values, isList := AsList(value)
	switch operator {
	case "", "=", "IN":
		if isList {
			return In(col, values...)
		}
		return Eq(col, value)
	case "!=", "<>", "NOT IN":
		if isList {
			return NotIn(col, values...)
		}
		return Ne(col, value)
	case "IS":
		if value == nil {
			return IsNull(col)
		}
	case "IS NOT":
		if value == nil {
			return IsNotNull(col)
		}
	}
	return op(col, operator, value)
}

// AsList returns the elements of value and true when value is a slice or an
// array other than []byte.
func AsList(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil, []byte:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	return lo.Times(rv.Len(), func(i int) any { return rv.Index(i).Interface() }), true
}

// AsMap returns value as map[string]any and true when value is a map with
// string keys, whatever its value type, e.g. map[string]int or url.Values.
func AsMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case Row:
		return v, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	for iter := rv.MapRange(); iter.Next(); {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// makePlaceholders returns a comma-separated list of '?' placeholders for SQL IN clauses.
func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Join(lo.RepeatBy(n, func(int) string { return "?" }), ", ")
}
