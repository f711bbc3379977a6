package db

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

//go:embed schema_sqlite.sql schema_postgres.sql
var schemaFS embed.FS

// sqliteParams are appended to every SQLite DSN unless already present.
// Writers take the lock at BEGIN so concurrent like toggles queue instead
// of failing on lock upgrade.
var sqliteParams = []string{"_foreign_keys=1", "_busy_timeout=5000", "_txlock=immediate"}

// Open connects to the database and applies the embedded schema.
func Open(driver, dsn string) (*sqlx.DB, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(sqlitePath(dsn)), 0755); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(dsn)
		schema = "schema_sqlite.sql"
	case DriverPostgres:
		schema = "schema_postgres.sql"
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sqlx.DB, schema string) error {
	sqlBytes, err := fs.ReadFile(schemaFS, schema)
	if err != nil {
		return err
	}
	if _, err := db.Exec(string(sqlBytes)); err != nil {
		return fmt.Errorf("db: apply %s: %w", schema, err)
	}
	return nil
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func sqliteDSN(dsn string) string {
	var missing []string
	for _, p := range sqliteParams {
		key := p[:strings.IndexByte(p, '=')+1]
		if !strings.Contains(dsn, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}
