package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
	"github.com/keelann95/localvault/pkg/log"
)

// CurrentSchemaVersion is the schema version written by this package. It must
// match the version of the last entry in migrations.
const CurrentSchemaVersion = 1

const (
	createVersionTable = "CREATE TABLE IF NOT EXISTS schema_version (name VARCHAR(64) NOT NULL PRIMARY KEY, version INTEGER NOT NULL)"
	loadVersionQuery   = "SELECT version FROM schema_version WHERE name = ?"
	insertVersionQuery = "INSERT INTO schema_version (name, version) VALUES (?, ?)"
	updateVersionQuery = "UPDATE schema_version SET version = ? WHERE name = ?"
)

// migration is a single additive upgrade step. Its statements MUST be safe to
// run against a table that already has the step applied.
type migration struct {
	version     int
	description string
	statements  func(t DBType, table string) []string
}

// migrations are applied in slice order and must be sorted by version.
var migrations = []migration{
	{
		version:     1,
		description: "create records table",
		statements: func(t DBType, table string) []string {
			var ddl string

			//nolint:exhaustive
			switch t {
			case MySQL:
				ddl = "CREATE TABLE IF NOT EXISTS %s (id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, ciphertext LONGBLOB NOT NULL, iv VARBINARY(12) NOT NULL)"
			case Postgres:
				ddl = "CREATE TABLE IF NOT EXISTS %s (id BIGSERIAL PRIMARY KEY, ciphertext BYTEA NOT NULL, iv BYTEA NOT NULL)"
			default:
				// AUTOINCREMENT keeps SQLite from reusing the ids of deleted rows.
				ddl = "CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, ciphertext BLOB NOT NULL, iv BLOB NOT NULL)"
			}

			return []string{fmt.Sprintf(ddl, table)}
		},
	},
}

func latestVersion() int {
	return migrations[len(migrations)-1].version
}

// schemaVersion returns the recorded version of table, or 0 if none was recorded.
func schemaVersion(ctx context.Context, db *sql.DB, t DBType, table string) (int, error) {
	var version int

	if err := db.QueryRowContext(ctx, t.q(loadVersionQuery), table).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, unavailableError(ctx, err, "error loading schema version")
	}

	return version, nil
}

// migrate brings table up to the latest known version and returns it.
func migrate(ctx context.Context, db *sql.DB, t DBType, table string) (int, error) {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, unavailableError(ctx, err, "error creating schema_version table")
	}

	current, err := schemaVersion(ctx, db, t, table)
	if err != nil {
		return 0, err
	}

	if latest := latestVersion(); current > latest {
		return 0, errors.Wrapf(localvault.ErrUnsupportedSchema, "table %s is at version %d, latest known is %d", table, current, latest)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		if err := applyMigration(ctx, db, t, table, m, current); err != nil {
			return 0, errors.Wrapf(err, "error upgrading table %s to version %d (%s)", table, m.version, m.description)
		}

		log.Debugf("[SQLRecordStore] upgraded table %s from version %d to %d: %s\n", table, current, m.version, m.description)

		current = m.version
	}

	return current, nil
}

func applyMigration(ctx context.Context, db *sql.DB, t DBType, table string, m migration, from int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailableError(ctx, err, "error starting transaction")
	}

	for _, stmt := range m.statements(t, table) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return unavailableError(ctx, err, fmt.Sprintf("error executing %q", stmt))
		}
	}

	if from == 0 {
		_, err = tx.ExecContext(ctx, t.q(insertVersionQuery), table, m.version)
	} else {
		_, err = tx.ExecContext(ctx, t.q(updateVersionQuery), m.version, table)
	}

	if err != nil {
		_ = tx.Rollback()
		return unavailableError(ctx, err, "error recording schema version")
	}

	if err := tx.Commit(); err != nil {
		return unavailableError(ctx, err, "error committing upgrade")
	}

	return nil
}
