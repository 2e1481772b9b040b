package db

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNoData is returned by Update when no row matched the WHERE clause
	// and by Get helpers that require a row.
	ErrNoData = errors.New("no data")
	// ErrDuplicateKey wraps unique constraint violations of every supported driver.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNoTable is returned when a statement is executed without a table.
	ErrNoTable = errors.New("no table specified")
	// ErrNoSet is returned by Insert and Update when there is nothing to write.
	ErrNoSet = errors.New("no data to write")
	// ErrUnsafeDelete is returned by Delete without any WHERE condition.
	ErrUnsafeDelete = errors.New("delete requires a where condition")
	// ErrInvalidIdentifier is returned for table or column names that are not
	// plain (optionally qualified) identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

const mysqlDuplicateEntry = 1062

// wrapError translates driver errors into the sentinels above, keeping the
// driver error in the chain.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	}
	return err
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgerrcode.UniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
