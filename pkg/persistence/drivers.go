package persistence

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	// Registers the postgres driver.
	_ "github.com/lib/pq"
	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/keelann95/localvault"
)

// Valid reports whether t is a supported database family.
func (t DBType) Valid() bool {
	switch t {
	case SQLite, MySQL, Postgres:
		return true
	default:
		return false
	}
}

// OpenDB returns a database handle for the given family and data source name.
// The connection is not verified until the store is opened.
func OpenDB(t DBType, dsn string) (*sql.DB, error) {
	if !t.Valid() {
		return nil, errors.Errorf("unsupported database type %q", t)
	}

	if t == MySQL {
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
		}

		dsn = cfg.FormatDSN()
	}

	db, err := sql.Open(string(t), dsn)
	if err != nil {
		return nil, errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	return db, nil
}
