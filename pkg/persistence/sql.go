package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/keelann95/localvault"
	"github.com/keelann95/localvault/pkg/log"
)

const (
	// DefaultTableName is the container records are kept in unless WithTableName is used.
	DefaultTableName = "records"

	insertQuery    = "INSERT INTO %s (ciphertext, iv) VALUES (?, ?)"
	getAllQuery    = "SELECT id, ciphertext, iv FROM %s ORDER BY id ASC"
	deleteQuery    = "DELETE FROM %s WHERE id = ?"
	returningQuery = " RETURNING id"
)

var (
	// Verify SQLRecordStore implements the RecordStore interface.
	_ localvault.RecordStore = (*SQLRecordStore)(nil)

	insertSQLTimer = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.store.sql.insert", localvault.MetricsPrefix), nil)
	getAllSQLTimer = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.store.sql.getall", localvault.MetricsPrefix), nil)
	deleteSQLTimer = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.store.sql.delete", localvault.MetricsPrefix), nil)

	identrx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)
)

// DBType identifies a specific family of database/sql drivers. Its value is
// the name the driver registers itself under.
type DBType string

const (
	SQLite   DBType = "sqlite3"
	MySQL    DBType = "mysql"
	Postgres DBType = "postgres"

	DefaultDBType = SQLite
)

var qrx = regexp.MustCompile(`\?`)

// q converts "?" characters to $1, $2, $n on postgres.
//
// This function is based on a function of the same name found in the Go
// sql test project: https://github.com/bradfitz/go-sql-test.
func (t DBType) q(sql string) string {
	if t != Postgres {
		return sql
	}

	n := 0

	return qrx.ReplaceAllStringFunc(sql, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

// SQLOption is used to configure additional options in a SQLRecordStore.
type SQLOption func(*SQLRecordStore)

// WithDBType configures the SQLRecordStore for use with the specified family of
// database/sql drivers such as SQLite (default), MySQL, or Postgres.
func WithDBType(t DBType) SQLOption {
	return func(s *SQLRecordStore) {
		s.dbType = t
	}
}

// WithTableName sets the name of the table records are kept in.
func WithTableName(name string) SQLOption {
	return func(s *SQLRecordStore) {
		s.table = name
	}
}

// SQLRecordStore implements the RecordStore interface for a RDBMS.
//
// The store creates its own tables on Open. The database handle is owned by
// the caller: Close only returns the store to the unopened state.
type SQLRecordStore struct {
	db *sql.DB

	dbType DBType
	table  string

	insertQuery string
	getAllQuery string
	deleteQuery string

	mu     sync.RWMutex
	isOpen bool
}

// NewSQLRecordStore returns a new SQLRecordStore using the provided sql connection.
func NewSQLRecordStore(dbHandle *sql.DB, opts ...SQLOption) *SQLRecordStore {
	s := &SQLRecordStore{
		db:     dbHandle,
		dbType: DefaultDBType,
		table:  DefaultTableName,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.insertQuery = s.dbType.q(fmt.Sprintf(insertQuery, s.table))
	if s.dbType == Postgres {
		s.insertQuery += returningQuery
	}

	s.getAllQuery = s.dbType.q(fmt.Sprintf(getAllQuery, s.table))
	s.deleteQuery = s.dbType.q(fmt.Sprintf(deleteQuery, s.table))

	return s
}

// Open verifies the database is reachable and brings its schema up to date.
// Opening an open store is a no-op.
func (s *SQLRecordStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isOpen {
		return nil
	}

	if s.db == nil {
		return errors.Wrap(localvault.ErrStorageUnavailable, "no database handle")
	}

	if !s.dbType.Valid() {
		return errors.Errorf("unsupported database type %q", s.dbType)
	}

	if !identrx.MatchString(s.table) {
		return errors.Errorf("invalid table name %q", s.table)
	}

	if err := s.db.PingContext(ctx); err != nil {
		return unavailableError(ctx, err, fmt.Sprintf("error connecting to %s database", s.dbType))
	}

	if s.dbType == SQLite {
		// SQLite allows a single writer, and each connection to :memory: is a separate database.
		s.db.SetMaxOpenConns(1)

		if err := applyPragmas(ctx, s.db); err != nil {
			return err
		}
	}

	version, err := migrate(ctx, s.db, s.dbType, s.table)
	if err != nil {
		return err
	}

	log.Debugf("[SQLRecordStore] opened %s table %s at schema version %d\n", s.dbType, s.table, version)

	s.isOpen = true

	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return unavailableError(ctx, err, fmt.Sprintf("error executing %q", pragma))
		}
	}

	return nil
}

func (s *SQLRecordStore) checkOpen() error {
	if !s.isOpen {
		return localvault.ErrStoreNotOpen
	}

	return nil
}

// Insert stores e and returns the id assigned to it by the database.
func (s *SQLRecordStore) Insert(ctx context.Context, e localvault.Envelope) (int64, error) {
	defer insertSQLTimer.UpdateSince(time.Now())

	if err := e.Validate(); err != nil {
		return 0, errors.Wrap(err, "refusing to store malformed envelope")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	if s.dbType == Postgres {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.insertQuery, e.Ciphertext, e.IV).Scan(&id); err != nil {
			return 0, queryError(ctx, err, "error inserting record")
		}

		return id, nil
	}

	res, err := s.db.ExecContext(ctx, s.insertQuery, e.Ciphertext, e.IV)
	if err != nil {
		return 0, queryError(ctx, err, "error inserting record")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, queryError(ctx, err, "error reading inserted id")
	}

	return id, nil
}

// GetAll returns every record ordered by id ascending.
func (s *SQLRecordStore) GetAll(ctx context.Context) ([]localvault.StoredRecord, error) {
	defer getAllSQLTimer.UpdateSince(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.getAllQuery)
	if err != nil {
		return nil, queryError(ctx, err, "error querying records")
	}
	defer rows.Close()

	records := make([]localvault.StoredRecord, 0)

	for rows.Next() {
		var r localvault.StoredRecord
		if err := rows.Scan(&r.ID, &r.Ciphertext, &r.IV); err != nil {
			return nil, errors.Wrap(err, "error from scanner")
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, err, "error reading records")
	}

	return records, nil
}

// Delete removes the record with the given id. Its id is never handed out again.
func (s *SQLRecordStore) Delete(ctx context.Context, id int64) error {
	defer deleteSQLTimer.UpdateSince(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.deleteQuery, id)
	if err != nil {
		return queryError(ctx, err, fmt.Sprintf("error deleting record %d", id))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return queryError(ctx, err, fmt.Sprintf("error deleting record %d", id))
	}

	if n == 0 {
		return errors.Wrapf(localvault.ErrRecordNotFound, "id %d", id)
	}

	return nil
}

// SchemaVersion returns the schema version recorded for the table.
func (s *SQLRecordStore) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	return schemaVersion(ctx, s.db, s.dbType, s.table)
}

// Close returns the store to the unopened state. The database handle is left open.
func (s *SQLRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isOpen = false

	return nil
}
