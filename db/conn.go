package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Conn is the minimal database contract used by this package.
// It mirrors the methods we use from *sqlx.DB, which satisfies it directly.
//
// The indirection lets cross-cutting features (SQL logging, tracing) wrap a
// connection without changing the Builder.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
	// DriverName is the name the connection was opened with, used to pick the
	// placeholder style and the insert-id strategy.
	DriverName() string
}

var _ Conn = (*sqlx.DB)(nil)

// loggingConn is a thin wrapper around Conn that logs SQL statements at debug level.
type loggingConn struct {
	inner  Conn
	logger *zap.Logger
}

func (c loggingConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.inner.ExecContext(ctx, query, args...)
	c.logger.Debug("sql exec", zap.Duration("dur", time.Since(start)), zap.String("sql", query), zap.Any("args", args), zap.Error(err))
	return res, err
}

func (c loggingConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := c.inner.QueryContext(ctx, query, args...)
	c.logger.Debug("sql query", zap.Duration("dur", time.Since(start)), zap.String("sql", query), zap.Any("args", args), zap.Error(err))
	return rows, err
}

func (c loggingConn) PingContext(ctx context.Context) error {
	start := time.Now()
	err := c.inner.PingContext(ctx)
	c.logger.Debug("sql ping", zap.Duration("dur", time.Since(start)), zap.Error(err))
	return err
}

func (c loggingConn) Close() error {
	err := c.inner.Close()
	c.logger.Debug("sql close", zap.String("driver", c.inner.DriverName()), zap.Error(err))
	return err
}

func (c loggingConn) DriverName() string { return c.inner.DriverName() }

// WithSQLLogger wraps conn with a SQL logger if logger is not nil.
func WithSQLLogger(conn Conn, logger *zap.Logger) Conn {
	if logger == nil {
		return conn
	}
	return loggingConn{inner: conn, logger: logger.Named("sql")}
}
