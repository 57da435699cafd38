package localvault

import (
	"context"
	"sync"

	"github.com/godaddy/asherah/go/securememory"
	"github.com/godaddy/asherah/go/securememory/memguard"
	"github.com/stretchr/testify/mock"
)

var secretFactory = new(memguard.SecretFactory)

type MockSecretFactory struct {
	mock.Mock
}

func (s *MockSecretFactory) New(b []byte) (securememory.Secret, error) {
	ret := s.Called(b)

	var newSecret securememory.Secret
	if b := ret.Get(0); b != nil {
		newSecret = b.(securememory.Secret)
	}

	return newSecret, ret.Error(1)
}

func (s *MockSecretFactory) CreateRandom(size int) (securememory.Secret, error) {
	ret := s.Called(size)

	var newSecret securememory.Secret
	if b := ret.Get(0); b != nil {
		newSecret = b.(securememory.Secret)
	}

	return newSecret, ret.Error(1)
}

type MockKeyStorage struct {
	mock.Mock
}

func (s *MockKeyStorage) Load(ctx context.Context, name string) ([]byte, error) {
	ret := s.Called(ctx, name)

	var bytes []byte
	if b := ret.Get(0); b != nil {
		// KeyManager wipes what it loads.
		bytes = append([]byte(nil), b.([]byte)...)
	}

	return bytes, ret.Error(1)
}

func (s *MockKeyStorage) Store(ctx context.Context, name string, material []byte) error {
	ret := s.Called(ctx, name, append([]byte(nil), material...))

	return ret.Error(0)
}

// mapStorage is a working KeyStorage that counts writes.
type mapStorage struct {
	mu     sync.Mutex
	slots  map[string][]byte
	stores int
}

func newMapStorage() *mapStorage {
	return &mapStorage{slots: make(map[string][]byte)}
}

func (s *mapStorage) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.slots[name]
	if !ok {
		return nil, nil
	}

	return append([]byte(nil), b...), nil
}

func (s *mapStorage) Store(_ context.Context, name string, material []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[name] = append([]byte(nil), material...)
	s.stores++

	return nil
}

func (s *mapStorage) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots = make(map[string][]byte)
}

func (s *mapStorage) storeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stores
}

type MockCrypto struct {
	mock.Mock
}

func (c *MockCrypto) Seal(data, key []byte) ([]byte, []byte, error) {
	// We need to copy the key as bytes are set to no access in WithBytesFunc call
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	ret := c.Called(data, keyCopy)

	var ciphertext, nonce []byte
	if b := ret.Get(0); b != nil {
		ciphertext = b.([]byte)
	}

	if b := ret.Get(1); b != nil {
		nonce = b.([]byte)
	}

	return ciphertext, nonce, ret.Error(2)
}

func (c *MockCrypto) Open(ciphertext, nonce, key []byte) ([]byte, error) {
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	ret := c.Called(ciphertext, nonce, keyCopy)

	var bytes []byte
	if b := ret.Get(0); b != nil {
		bytes = b.([]byte)
	}

	return bytes, ret.Error(1)
}

type MockRecordStore struct {
	mock.Mock
}

func (s *MockRecordStore) Open(ctx context.Context) error {
	return s.Called(ctx).Error(0)
}

func (s *MockRecordStore) Insert(ctx context.Context, e Envelope) (int64, error) {
	ret := s.Called(ctx, e)

	return ret.Get(0).(int64), ret.Error(1)
}

func (s *MockRecordStore) GetAll(ctx context.Context) ([]StoredRecord, error) {
	ret := s.Called(ctx)

	var records []StoredRecord
	if b := ret.Get(0); b != nil {
		records = b.([]StoredRecord)
	}

	return records, ret.Error(1)
}

func (s *MockRecordStore) Delete(ctx context.Context, id int64) error {
	return s.Called(ctx, id).Error(0)
}

func (s *MockRecordStore) SchemaVersion(ctx context.Context) (int, error) {
	ret := s.Called(ctx)

	return ret.Int(0), ret.Error(1)
}

func (s *MockRecordStore) Close() error {
	return s.Called().Error(0)
}
