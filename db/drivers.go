package db

import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"
)

// postgresDrivers are the registered drivers speaking to PostgreSQL. They don't
// report LastInsertId, so inserts use RETURNING instead.
var postgresDrivers = []string{"postgres", "pgx", "pgx/v5"}

func isPostgres(driver string) bool {
	return lo.Contains(postgresDrivers, driver)
}

// rebind converts '?' placeholders into the bind style of driver.
func rebind(driver, query string) string {
	return sqlx.Rebind(sqlx.BindType(driver), query)
}
