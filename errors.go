package localvault

import "github.com/pkg/errors"

// Error kinds. Callers should match them with errors.Is since they are
// usually returned wrapped with additional context.
var (
	// ErrKeyImport means the persisted key material could not be imported.
	// Data stored under the previous key may be unrecoverable.
	ErrKeyImport = errors.New("unable to import session key")
	// ErrCryptoUnavailable means a required cryptographic primitive or the
	// random source is not available.
	ErrCryptoUnavailable = errors.New("crypto primitive unavailable")
	// ErrAuthentication means an envelope failed authentication, either because
	// it was tampered with or because it was sealed with a different key.
	ErrAuthentication = errors.New("envelope authentication failed")
	// ErrStorageUnavailable means session or durable storage cannot be used in
	// this environment.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStoreNotOpen is returned by record store operations issued before Open.
	ErrStoreNotOpen = errors.New("record store is not open")
	// ErrRecordNotFound is returned when deleting an id the store does not hold.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUnsupportedSchema means the durable store was written by a newer
	// schema version than this package knows about.
	ErrUnsupportedSchema = errors.New("unsupported store schema version")
)
