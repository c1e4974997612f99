package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver every store is opened with. It is the
// stock go-sqlite3 driver plus a connect hook applying tuningPragmas.
const DriverName = "sqlite3_kuaizi"

// tuningPragmas run on every new connection: temp tables in memory and a
// larger page cache.
var tuningPragmas = []string{
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = 2500",
}

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, p := range tuningPragmas {
				if _, err := conn.Exec(p, nil); err != nil {
					return fmt.Errorf("apply %q: %w", p, err)
				}
			}
			return nil
		},
	})
}

// Executor is an interface that allows query helpers to accept either *sqlx.DB or *sqlx.Tx.
type Executor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// OpenReadOnly opens an existing database file in read-only mode.
func OpenReadOnly(ctx context.Context, path string) (*sqlx.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open read-only %s: %w", path, err)
	}
	return open(ctx, fmt.Sprintf("file:%s?mode=ro&_query_only=true", path))
}

// OpenReadWrite opens (creating if needed) a database file for writing.
// Transactions begin IMMEDIATE so concurrent writers queue on the busy timeout
// instead of failing on lock upgrade.
func OpenReadWrite(ctx context.Context, path string) (*sqlx.DB, error) {
	return open(ctx, fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path))
}

func open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dsn, err)
	}
	return conn, nil
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

