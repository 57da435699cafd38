package internal

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/godaddy/asherah/go/securememory/memguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	keySize = 32
	keyID   = "6b1c1b7e-3f4c-4a5e-9a51-1f1c7d2f0a11"
)

var (
	secretFactory = new(memguard.SecretFactory)
	created       = time.Now().Unix()
)

type MockSecret struct {
	mock.Mock
}

func (m *MockSecret) WithBytes(action func([]byte) error) error {
	ret := m.Called(action)

	return ret.Error(0)
}

func (m *MockSecret) WithBytesFunc(action func([]byte) ([]byte, error)) ([]byte, error) {
	ret := m.Called(action)

	var bytes []byte
	if b := ret.Get(0); b != nil {
		bytes = b.([]byte)
	}

	return bytes, ret.Error(1)
}

func (m *MockSecret) IsClosed() bool {
	ret := m.Called()

	return ret.Bool(0)
}

func (m *MockSecret) Close() error {
	ret := m.Called()

	return ret.Error(0)
}

func (m *MockSecret) NewReader() io.Reader {
	ret := m.Called()

	return ret.Get(0).(io.Reader)
}

func TestCryptoKey_Getters(t *testing.T) {
	key := NewCryptoKeyForTest(keyID, created)

	assert.Equal(t, keyID, key.ID())
	assert.Equal(t, created, key.Created())
}

func TestCryptoKey_Close(t *testing.T) {
	sec, err := secretFactory.New([]byte("testing"))
	require.NoError(t, err)

	key := &CryptoKey{
		secret: sec,
	}

	assert.False(t, key.IsClosed())
	key.Close()
	assert.True(t, key.IsClosed())
	assert.NotPanics(t, func() {
		key.Close()
	})
}

func TestCryptoKey_Close_ForTest(t *testing.T) {
	key := NewCryptoKeyForTest(keyID, created)

	assert.NotPanics(t, key.Close)
}

func TestCryptoKey_String(t *testing.T) {
	sec, err := secretFactory.New([]byte("testing"))
	require.NoError(t, err)

	key := &CryptoKey{id: keyID, secret: sec}
	defer key.Close()

	expected := fmt.Sprintf("CryptoKey(%p){id=%s secret(%p)}", key, keyID, sec)
	assert.Equal(t, expected, key.String())
}

func TestNewCryptoKey(t *testing.T) {
	bytes := []byte("blah")
	bytesCopy := make([]byte, len(bytes))
	copy(bytesCopy, bytes)

	key, err := NewCryptoKey(secretFactory, keyID, created, bytes)
	require.NoError(t, err)

	defer key.Close()

	assert.Equal(t, keyID, key.id)
	assert.Equal(t, created, key.created)
	_, err = WithKeyFunc(key, func(keyBytes []byte) ([]byte, error) {
		assert.Equal(t, bytesCopy, keyBytes)
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, make([]byte, len(bytes)), bytes)
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(secretFactory, keyID, created, keySize)
	require.NoError(t, err)

	defer key.Close()

	assert.Equal(t, created, key.created)
	_, err = WithKeyFunc(key, func(bytes []byte) ([]byte, error) {
		assert.Len(t, bytes, keySize)
		assert.NotEqual(t, make([]byte, keySize), bytes)
		return nil, nil
	})
	assert.NoError(t, err)
}

func TestWithKeyFunc(t *testing.T) {
	mockSecret := new(MockSecret)
	key := &CryptoKey{
		secret: mockSecret,
	}
	bytes := []byte("success")
	mockSecret.On("WithBytesFunc", mock.Anything).Return(bytes, nil)

	ret, err := WithKeyFunc(key, func(bytes []byte) ([]byte, error) {
		return nil, nil
	})
	if assert.NoError(t, err) {
		assert.Equal(t, bytes, ret)
	}
}

func BenchmarkGenerateKey(b *testing.B) {
	var key *CryptoKey

	for i := 0; i < b.N; i++ {
		key, _ = GenerateKey(secretFactory, keyID, time.Now().Unix(), keySize)
		key.Close()
	}

	b.ReportAllocs()
}
