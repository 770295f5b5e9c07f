package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Open connects to the database and applies driver specific settings.
// MySQL DSNs get parseTime, UTC and found-rows semantics; SQLite DSNs get
// WAL, a busy timeout and immediate write transactions, with a single
// connection so that writers queue instead of failing.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	var err error
	switch driver {
	case DriverMySQL:
		dsn, err = mysqlDSN(dsn)
	case DriverSQLite:
		dsn, err = sqliteDSN(dsn)
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.MultiStatements = false
	return cfg.FormatDSN(), nil
}

func sqliteDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("empty sqlite dsn")
	}
	base, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse sqlite dsn: %w", err)
	}
	defaults := map[string]string{
		"_journal_mode": "WAL",
		"_busy_timeout": "5000",
		"_txlock":       "immediate",
		"_foreign_keys": "1",
	}
	for k, v := range defaults {
		if q.Get(k) == "" {
			q.Set(k, v)
		}
	}
	return base + "?" + q.Encode(), nil
}

// Migrate creates the tables for the connection's driver. Statements are
// idempotent so it is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	script, err := schemaFS.ReadFile("schema/" + db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for driver %s: %w", db.DriverName(), err)
	}

	for _, stmt := range strings.Split(string(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// mapError turns driver specific failures into domain errors.
func mapError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	if isUniqueViolation(err) {
		return &domain.ConflictError{Message: entity + " already exists"}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isDeadlock reports a MySQL deadlock (1213), after which InnoDB has already
// rolled the transaction back.
func isDeadlock(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1213
}

func checkAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
