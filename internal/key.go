package internal

import (
	"fmt"
	"sync"

	"github.com/godaddy/asherah/go/securememory"
)

// CryptoKey represents an unencrypted key stored in a secure section in memory.
type CryptoKey struct {
	id      string
	created int64
	secret  securememory.Secret
	once    sync.Once
}

// ID returns the identifier the key was exported under.
func (k *CryptoKey) ID() string {
	return k.id
}

// Created returns the time the CryptoKey was created as a Unix epoch in seconds.
func (k *CryptoKey) Created() int64 {
	return k.created
}

// Close destroys the underlying buffer for this key.
func (k *CryptoKey) Close() {
	k.once.Do(k.close)
}

func (k *CryptoKey) close() {
	// k.secret is nil when the key is created for test.
	if k.secret == nil {
		return
	}

	k.secret.Close()
}

// IsClosed returns true if the underlying buffer has been closed.
func (k *CryptoKey) IsClosed() bool {
	return k.secret.IsClosed()
}

func (k *CryptoKey) String() string {
	return fmt.Sprintf("CryptoKey(%p){id=%s secret(%p)}", k, k.id, k.secret)
}

// WithBytesFunc implements BytesFuncAccessor.
func (k *CryptoKey) WithBytesFunc(action func([]byte) ([]byte, error)) ([]byte, error) {
	return k.secret.WithBytesFunc(action)
}

// NewCryptoKey creates a CryptoKey using the given key. Note that the underlying array will be wiped after the function
// exits.
func NewCryptoKey(factory securememory.SecretFactory, id string, created int64, key []byte) (*CryptoKey, error) {
	sec, err := factory.New(key)
	if err != nil {
		return nil, err
	}

	return &CryptoKey{
		id:      id,
		created: created,
		secret:  sec,
	}, nil
}

// NewCryptoKeyForTest creates a CryptoKey intended to be used for TEST only.
func NewCryptoKeyForTest(id string, created int64) *CryptoKey {
	return &CryptoKey{
		id:      id,
		created: created,
	}
}

// GenerateKey creates a new random CryptoKey.
func GenerateKey(factory securememory.SecretFactory, id string, created int64, size int) (*CryptoKey, error) {
	sec, err := factory.CreateRandom(size)
	if err != nil {
		return nil, err
	}

	return &CryptoKey{
		id:      id,
		created: created,
		secret:  sec,
	}, nil
}

type BytesFuncAccessor interface {
	WithBytesFunc(action func([]byte) ([]byte, error)) ([]byte, error)
}

// WithKeyFunc takes in a BytesFuncAccessor, e.g., a CryptoKey, makes the underlying bytes readable, and passes them to
// the function provided. A reference MUST not be stored to the provided bytes. The underlying array will be wiped after
// the function exits.
func WithKeyFunc(key BytesFuncAccessor, action func([]byte) ([]byte, error)) ([]byte, error) {
	return key.WithBytesFunc(action)
}
