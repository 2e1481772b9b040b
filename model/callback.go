package model

import (
	"context"
	"fmt"

	"github.com/kcmvp/basemodel/db"
)

// Callbacks run in the order they were registered. Each one receives the
// output of the previous one and may return an error to abort the operation.
// The model is passed in so a callback can add conditions through m.DB().
type (
	// BeforeGetFunc runs before a select with the normalised filter arguments.
	BeforeGetFunc func(ctx context.Context, m *Model, where []any) error
	// AfterGetFunc runs for every fetched row. Returning a nil row drops it.
	AfterGetFunc func(ctx context.Context, m *Model, row db.Row) (db.Row, error)
	// BeforeCreateFunc may rewrite the data about to be inserted.
	BeforeCreateFunc func(ctx context.Context, m *Model, data map[string]any) (map[string]any, error)
	// AfterCreateFunc receives the inserted data and the new id.
	AfterCreateFunc func(ctx context.Context, m *Model, data map[string]any, id int64) error
	// BeforeUpdateFunc may rewrite the data about to be written to the row id.
	BeforeUpdateFunc func(ctx context.Context, m *Model, id any, data map[string]any) (map[string]any, error)
	// AfterUpdateFunc receives the written data, the row id and the affected row count.
	AfterUpdateFunc func(ctx context.Context, m *Model, id any, data map[string]any, affected int64) error
	BeforeDeleteFunc func(ctx context.Context, m *Model, where []any) error
	AfterDeleteFunc  func(ctx context.Context, m *Model, where []any, affected int64) error
)

func BeforeGet(fns ...BeforeGetFunc) Option {
	return func(m *Model) { m.beforeGet = append(m.beforeGet, fns...) }
}

func AfterGet(fns ...AfterGetFunc) Option {
	return func(m *Model) { m.afterGet = append(m.afterGet, fns...) }
}

func BeforeCreate(fns ...BeforeCreateFunc) Option {
	return func(m *Model) { m.beforeCreate = append(m.beforeCreate, fns...) }
}

func AfterCreate(fns ...AfterCreateFunc) Option {
	return func(m *Model) { m.afterCreate = append(m.afterCreate, fns...) }
}

func BeforeUpdate(fns ...BeforeUpdateFunc) Option {
	return func(m *Model) { m.beforeUpdate = append(m.beforeUpdate, fns...) }
}

func AfterUpdate(fns ...AfterUpdateFunc) Option {
	return func(m *Model) { m.afterUpdate = append(m.afterUpdate, fns...) }
}

func BeforeDelete(fns ...BeforeDeleteFunc) Option {
	return func(m *Model) { m.beforeDelete = append(m.beforeDelete, fns...) }
}

func AfterDelete(fns ...AfterDeleteFunc) Option {
	return func(m *Model) { m.afterDelete = append(m.afterDelete, fns...) }
}

func callbackErr(point string, i int, err error) error {
	return fmt.Errorf("%s callback #%d: %w", point, i, err)
}

func (m *Model) runBeforeGet(ctx context.Context, where []any) error {
	for i, fn := range m.beforeGet {
		if err := fn(ctx, m, where); err != nil {
			return callbackErr("before_get", i, err)
		}
	}
	return nil
}

// runAfterGet passes row through the after_get chain. A nil result means the
// row was dropped and the remaining callbacks are skipped.
func (m *Model) runAfterGet(ctx context.Context, row db.Row) (db.Row, error) {
	for i, fn := range m.afterGet {
		var err error
		if row, err = fn(ctx, m, row); err != nil {
			return nil, callbackErr("after_get", i, err)
		}
		if row == nil {
			return nil, nil
		}
	}
	return row, nil
}

func (m *Model) runBeforeCreate(ctx context.Context, data map[string]any) (map[string]any, error) {
	for i, fn := range m.beforeCreate {
		var err error
		if data, err = fn(ctx, m, data); err != nil {
			return nil, callbackErr("before_create", i, err)
		}
	}
	return data, nil
}

func (m *Model) runAfterCreate(ctx context.Context, data map[string]any, id int64) error {
	for i, fn := range m.afterCreate {
		if err := fn(ctx, m, data, id); err != nil {
			return callbackErr("after_create", i, err)
		}
	}
	return nil
}

func (m *Model) runBeforeUpdate(ctx context.Context, id any, data map[string]any) (map[string]any, error) {
	for i, fn := range m.beforeUpdate {
		var err error
		if data, err = fn(ctx, m, id, data); err != nil {
			return nil, callbackErr("before_update", i, err)
		}
	}
	return data, nil
}

func (m *Model) runAfterUpdate(ctx context.Context, id any, data map[string]any, affected int64) error {
	for i, fn := range m.afterUpdate {
		if err := fn(ctx, m, id, data, affected); err != nil {
			return callbackErr("after_update", i, err)
		}
	}
	return nil
}

func (m *Model) runBeforeDelete(ctx context.Context, where []any) error {
	for i, fn := range m.beforeDelete {
		if err := fn(ctx, m, where); err != nil {
			return callbackErr("before_delete", i, err)
		}
	}
	return nil
}

func (m *Model) runAfterDelete(ctx context.Context, where []any, affected int64) error {
	for i, fn := range m.afterDelete {
		if err := fn(ctx, m, where, affected); err != nil {
			return callbackErr("after_delete", i, err)
		}
	}
	return nil
}
