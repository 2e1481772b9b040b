package model

import (
	"context"

	"github.com/kcmvp/basemodel/db"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// begin resolves the table and applies the filter. Pending builder state is
// dropped on failure so it can't leak into the next statement.
func (m *Model) begin(where []any) (string, error) {
	table, err := m.Table()
	if err != nil {
		m.b.Reset()
		return "", err
	}
	if err := m.setWhere(where); err != nil {
		return "", err
	}
	return table, nil
}

// Get returns the first row matching where, or None.
func (m *Model) Get(ctx context.Context, where ...any) (mo.Option[db.Row], error) {
	table, err := m.begin(where)
	if err != nil {
		return mo.None[db.Row](), err
	}
	if err := m.runBeforeGet(ctx, where); err != nil {
		m.b.Reset()
		return mo.None[db.Row](), err
	}
	if !m.b.HasLimit() {
		m.b.Limit(1)
	}
	res, err := m.b.Get(ctx, table)
	if err != nil {
		return mo.None[db.Row](), err
	}
	m.logger.Debug("get", zap.String("table", table), zap.Int("rows", res.NumRows()))
	row, ok := res.Row().Get()
	if !ok {
		return mo.None[db.Row](), nil
	}
	if row, err = m.runAfterGet(ctx, row); err != nil || row == nil {
		return mo.None[db.Row](), err
	}
	return mo.Some(row), nil
}

// GetAll returns every row matching where. It is the same as GetMany.
func (m *Model) GetAll(ctx context.Context, where ...any) ([]db.Row, error) {
	return m.GetMany(ctx, where...)
}

// GetMany returns every row matching where, after_get applied to each.
func (m *Model) GetMany(ctx context.Context, where ...any) ([]db.Row, error) {
	table, err := m.begin(where)
	if err != nil {
		return nil, err
	}
	if err := m.runBeforeGet(ctx, where); err != nil {
		m.b.Reset()
		return nil, err
	}
	res, err := m.b.Get(ctx, table)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("get many", zap.String("table", table), zap.Int("rows", res.NumRows()))
	return m.afterGetAll(ctx, res.Rows())
}

func (m *Model) afterGetAll(ctx context.Context, rows []db.Row) ([]db.Row, error) {
	out := make([]db.Row, 0, len(rows))
	for _, row := range rows {
		row, err := m.runAfterGet(ctx, row)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

// Insert validates data unless skipped, runs before_create, keeps only the
// allowed fields and inserts them. It returns the new id.
func (m *Model) Insert(ctx context.Context, data map[string]any, skipValidation ...bool) (int64, error) {
	table, err := m.begin(nil)
	if err != nil {
		return 0, err
	}
	if err := m.validate(ctx, data, skipValidation); err != nil {
		m.b.Reset()
		return 0, err
	}
	if data, err = m.runBeforeCreate(ctx, data); err != nil {
		m.b.Reset()
		return 0, err
	}
	if data, err = m.filter(ctx, data); err != nil {
		m.b.Reset()
		return 0, err
	}
	id, err := m.b.Returning(m.pk).Insert(ctx, table, data)
	if err != nil {
		return 0, err
	}
	m.logger.Debug("insert", zap.String("table", table), zap.Int64("id", id))
	if err := m.runAfterCreate(ctx, data, id); err != nil {
		return id, err
	}
	return id, nil
}

// Update runs before_update, validates data unless skipped, keeps only the
// allowed fields and writes them to the row whose primary key is id. It
// returns the number of affected rows.
func (m *Model) Update(ctx context.Context, id any, data map[string]any, skipValidation ...bool) (int64, error) {
	table, err := m.begin(nil)
	if err != nil {
		return 0, err
	}
	if data, err = m.runBeforeUpdate(ctx, id, data); err != nil {
		m.b.Reset()
		return 0, err
	}
	if err := m.validate(ctx, data, skipValidation); err != nil {
		m.b.Reset()
		return 0, err
	}
	if data, err = m.filter(ctx, data); err != nil {
		m.b.Reset()
		return 0, err
	}
	n, err := m.b.WhereCond(db.Eq(m.pk, id)).Update(ctx, table, data)
	if err != nil {
		return 0, err
	}
	m.logger.Debug("update", zap.String("table", table), zap.Any("id", id), zap.Int64("affected", n))
	if err := m.runAfterUpdate(ctx, id, data, n); err != nil {
		return n, err
	}
	return n, nil
}

// Delete removes the rows matching where and returns how many were removed.
// A call without any filter is refused with db.ErrUnsafeDelete.
func (m *Model) Delete(ctx context.Context, where ...any) (int64, error) {
	table, err := m.begin(where)
	if err != nil {
		return 0, err
	}
	if err := m.runBeforeDelete(ctx, where); err != nil {
		m.b.Reset()
		return 0, err
	}
	n, err := m.b.Delete(ctx, table)
	if err != nil {
		return 0, err
	}
	m.logger.Debug("delete", zap.String("table", table), zap.Int64("affected", n))
	if err := m.runAfterDelete(ctx, where, n); err != nil {
		return n, err
	}
	return n, nil
}

// CountAllResults counts the rows matching where.
func (m *Model) CountAllResults(ctx context.Context, where ...any) (int64, error) {
	table, err := m.begin(where)
	if err != nil {
		return 0, err
	}
	return m.b.CountAllResults(ctx, table)
}

// CountAll counts every row of the table.
func (m *Model) CountAll(ctx context.Context) (int64, error) {
	table, err := m.Table()
	if err != nil {
		return 0, err
	}
	return m.b.CountAll(ctx, table)
}

// Dropdown maps key column values to value column values over all rows.
// Called with one column it is used as the value and the primary key as the key.
// Keys are stringified; for duplicate keys the last row wins.
func (m *Model) Dropdown(ctx context.Context, keyOrValue string, value ...string) (map[string]any, error) {
	key, val := m.pk, keyOrValue
	if len(value) > 0 {
		key, val = keyOrValue, value[0]
	}
	table, err := m.begin(nil)
	if err != nil {
		return nil, err
	}
	if err := m.runBeforeGet(ctx, nil); err != nil {
		m.b.Reset()
		return nil, err
	}
	res, err := m.b.Select(lo.Uniq([]string{key, val})...).Get(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := m.afterGetAll(ctx, res.Rows())
	if err != nil {
		return nil, err
	}
	options := make(map[string]any, len(rows))
	for _, row := range rows {
		options[cast.ToString(row[key])] = row[val]
	}
	return options, nil
}
