// Package localvault contains a local-first encrypted record store. Records are
// opaque payloads that are sealed with a per-session AES-256-GCM key and kept
// only as ciphertext envelopes in a durable, schema-versioned store.
//
// Most callers interact with the Service, which composes a KeyManager, a Codec
// and a RecordStore into two operations: Put, which encrypts then stores a
// record, and GetAll, which retrieves and decrypts every stored record.
//
// The session key lives in session-scoped storage (see pkg/keystorage) and
// never in the durable store. Losing the session makes previously stored
// envelopes undecryptable, which GetAll reports per record instead of failing
// the whole batch.
package localvault

import "context"

// KeyStorage is a session-scoped slot store for exported key material. Slots
// are expected to disappear when the session ends.
type KeyStorage interface {
	// Load returns a copy of the material stored under name. The return value
	// will be nil if the slot is empty. The caller owns the returned slice and
	// may wipe it.
	Load(ctx context.Context, name string) ([]byte, error)
	// Store writes material under name, replacing any previous value. A
	// reference MUST not be kept to material after Store returns.
	Store(ctx context.Context, name string, material []byte) error
}

// AEAD contains the functions required to seal and open data using a specific
// cipher. Implementations MUST generate a fresh random nonce for every call to
// Seal and MUST NOT accept one from the caller.
type AEAD interface {
	// Seal encrypts data using the provided key bytes and returns the ciphertext,
	// including the authentication tag, along with the nonce that was generated for it.
	Seal(data, key []byte) (ciphertext, nonce []byte, err error)
	// Open verifies and decrypts ciphertext using the provided key bytes and nonce.
	Open(ciphertext, nonce, key []byte) ([]byte, error)
}

// RecordStore persists ciphertext envelopes. It never sees plaintext.
type RecordStore interface {
	// Open prepares the store for use, creating or upgrading its schema as needed.
	// Opening an already open store is a no-op.
	Open(ctx context.Context) error
	// Insert appends a new record and returns its store-assigned id. Ids are
	// strictly increasing and never reused.
	Insert(ctx context.Context, e Envelope) (int64, error)
	// GetAll returns every stored record ordered by id ascending.
	GetAll(ctx context.Context) ([]StoredRecord, error)
	// Delete removes the record with the given id.
	Delete(ctx context.Context, id int64) error
	// SchemaVersion returns the schema version of an open store.
	SchemaVersion(ctx context.Context) (int, error)
	// Close moves the store back to the unopened state. A closed store may be
	// opened again.
	Close() error
}

const (
	// AES256KeySize is the size of the session key in bytes.
	AES256KeySize int = 32
	// IVSize is the size of the AES-GCM nonce stored with each envelope.
	IVSize int = 12
	// TagSize is the size of the AES-GCM authentication tag appended to each ciphertext.
	TagSize int = 16
)
