// Package model provides a base model bound to one database table. Application
// models embed *Model and get CRUD helpers, lifecycle callbacks, validation
// dispatch and table/field inference for free:
//
//	type UserModel struct{ *model.Model }
//
//	users := UserModel{model.For[UserModel](builder, model.Rules(rules))}
//	row, err := users.Get(ctx, 42)
package model

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/kcmvp/basemodel/app"
	"github.com/kcmvp/basemodel/db"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const defaultPrimaryKey = "id"

var (
	// ErrValidation wraps every error returned by the model's Validator.
	ErrValidation = errors.New("validation failed")
	// ErrNoTable is returned when no table name is set and none can be inferred.
	ErrNoTable = errors.New("model has no table")
	// ErrWhereArgs is returned for filter arguments that can't be turned into a WHERE clause.
	ErrWhereArgs = errors.New("invalid where arguments")
)

// Model is a CRUD façade over one table. It keeps per-call query state in its
// Builder, so it is not safe for concurrent use: create one per request.
type Model struct {
	b      *db.Builder
	table  string
	name   string
	pk     string
	fields []string
	rules  Validator
	skip   bool
	logger *zap.Logger

	beforeGet    []BeforeGetFunc
	afterGet     []AfterGetFunc
	beforeCreate []BeforeCreateFunc
	afterCreate  []AfterCreateFunc
	beforeUpdate []BeforeUpdateFunc
	afterUpdate  []AfterUpdateFunc
	beforeDelete []BeforeDeleteFunc
	afterDelete  []AfterDeleteFunc
}

// Option configures a Model.
type Option func(*Model)

// Table sets the table name, disabling inference.
func Table(name string) Option {
	return func(m *Model) { m.table = name }
}

// Of infers the table name from the Go type of v.
func Of(v any) Option {
	return func(m *Model) { m.name = typeName(reflect.TypeOf(v)) }
}

// PrimaryKey sets the primary key column. The default is "id".
func PrimaryKey(col string) Option {
	return func(m *Model) { m.pk = col }
}

// Fields sets the columns accepted by Insert and Update. When unset they are
// read from the table schema on first use.
func Fields(cols ...string) Option {
	return func(m *Model) { m.fields = cols }
}

// Rules sets the validator run by Insert and Update.
func Rules(v Validator) Option {
	return func(m *Model) { m.rules = v }
}

func Logger(l *zap.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// New returns a model running its queries through b.
func New(b *db.Builder, opts ...Option) *Model {
	m := &Model{b: b, pk: defaultPrimaryKey}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = app.Logger().Named("model")
	}
	return m
}

// For returns a model whose table name is inferred from T, e.g. UserModel
// becomes "users".
func For[T any](b *db.Builder, opts ...Option) *Model {
	return New(b, append([]Option{func(m *Model) { m.name = typeName(reflect.TypeFor[T]()) }}, opts...)...)
}

// NewDefault returns a model on the default datasource.
func NewDefault(opts ...Option) (*Model, error) {
	b, err := db.Default()
	if err != nil {
		return nil, err
	}
	return New(b, opts...), nil
}

func typeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// DB returns the underlying builder for anything the model doesn't wrap.
// Conditions added to it apply to the next model operation.
func (m *Model) DB() *db.Builder { return m.b }

// Table returns the table name, inferring it from the model type if needed.
func (m *Model) Table() (string, error) {
	if m.table == "" && m.name != "" {
		m.table = TableName(m.name)
	}
	if m.table == "" {
		return "", ErrNoTable
	}
	return m.table, nil
}

func (m *Model) PrimaryKey() string { return m.pk }

// Fields returns the allowed columns, loading them from the schema the first
// time they are needed.
func (m *Model) Fields(ctx context.Context) ([]string, error) {
	if len(m.fields) > 0 {
		return m.fields, nil
	}
	fields, err := m.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	m.fields = fields
	return m.fields, nil
}

// ListFields returns the columns of the table as reported by the database.
func (m *Model) ListFields(ctx context.Context) ([]string, error) {
	table, err := m.Table()
	if err != nil {
		return nil, err
	}
	return m.b.ListFields(ctx, table)
}

// SkipValidation turns validation off (or back on) for Insert and Update.
func (m *Model) SkipValidation(skip bool) *Model {
	m.skip = skip
	return m
}

// Limit restricts the next query. Non-positive limits are ignored, as are
// negative offsets.
func (m *Model) Limit(limit int, offset ...int) *Model {
	if limit <= 0 {
		return m
	}
	m.b.Limit(limit, max(0, lo.FirstOr(offset, 0)))
	return m
}

func (m *Model) Select(cols ...string) *Model {
	m.b.Select(cols...)
	return m
}

func (m *Model) Where(key string, value any) *Model {
	m.b.Where(key, value)
	return m
}

func (m *Model) WhereIn(col string, values ...any) *Model {
	m.b.WhereIn(col, values...)
	return m
}

func (m *Model) OrderBy(col string, dir ...string) *Model {
	m.b.OrderBy(col, dir...)
	return m
}

// filter drops the keys of data that are not allowed fields.
func (m *Model) filter(ctx context.Context, data map[string]any) (map[string]any, error) {
	fields, err := m.Fields(ctx)
	if err != nil {
		return nil, err
	}
	return lo.PickByKeys(data, fields), nil
}
