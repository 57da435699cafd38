package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
)

// pqConnectionException is the SQLSTATE class postgres reports lost or refused connections under.
const pqConnectionException pq.ErrorClass = "08"

// unavailableError annotates an error raised while opening the store. Context
// errors are passed through, anything else marks the store ErrStorageUnavailable.
// The cause stays matchable with errors.Is and errors.As in both cases.
func unavailableError(ctx context.Context, err error, msg string) error {
	if ctxErr := contextError(ctx, err); ctxErr != nil {
		return errors.Wrap(ctxErr, msg)
	}

	return fmt.Errorf("%s: %w: %w", msg, localvault.ErrStorageUnavailable, err)
}

// queryError annotates an error raised by a statement against an open store.
// Only connection failures are marked ErrStorageUnavailable.
func queryError(ctx context.Context, err error, msg string) error {
	if ctxErr := contextError(ctx, err); ctxErr != nil {
		return errors.Wrap(ctxErr, msg)
	}

	if isConnError(err) {
		return fmt.Errorf("%s: %w: %w", msg, localvault.ErrStorageUnavailable, err)
	}

	return errors.Wrap(err, msg)
}

// contextError returns the context error responsible for err, if any.
func contextError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, err.Error())
	}

	return nil
}

// isConnError reports whether err means the database itself can no longer be reached.
func isConnError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pqConnectionException
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			return true
		}
	}

	return false
}
