package keystorage

import (
	"context"
	"sync"

	"github.com/godaddy/asherah/go/securememory"
	"github.com/godaddy/asherah/go/securememory/memguard"
	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
)

// Verify MemoryStorage implements the KeyStorage interface.
var _ localvault.KeyStorage = (*MemoryStorage)(nil)

// MemoryStorage keeps slots in protected memory for the lifetime of the process,
// which makes the process the session. Slots are lost when the process exits or
// Clear is called.
type MemoryStorage struct {
	SecretFactory securememory.SecretFactory

	mu    sync.RWMutex
	slots map[string]securememory.Secret
}

// MemoryOption is used to configure additional options in a MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithSecretFactory sets the factory to use for creating slot secrets.
func WithSecretFactory(f securememory.SecretFactory) MemoryOption {
	return func(s *MemoryStorage) {
		s.SecretFactory = f
	}
}

// NewMemoryStorage returns a new, empty, in-memory slot store.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		SecretFactory: new(memguard.SecretFactory),
		slots:         make(map[string]securememory.Secret),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load returns a copy of the material in slot name, or nil if the slot is empty.
func (s *MemoryStorage) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, ok := s.slots[name]
	if !ok {
		return nil, nil
	}

	return sec.WithBytesFunc(func(b []byte) ([]byte, error) {
		out := make([]byte, len(b))
		copy(out, b)

		return out, nil
	})
}

// Store copies material into protected memory under slot name.
func (s *MemoryStorage) Store(_ context.Context, name string, material []byte) error {
	// the secret factory wipes its input, leave the caller's slice alone
	buf := make([]byte, len(material))
	copy(buf, material)

	sec, err := s.SecretFactory.New(buf)
	if err != nil {
		return errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slots == nil {
		s.slots = make(map[string]securememory.Secret)
	}

	if old, ok := s.slots[name]; ok {
		old.Close()
	}

	s.slots[name] = sec

	return nil
}

// Clear empties every slot, ending the session.
func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, sec := range s.slots {
		sec.Close()
		delete(s.slots, name)
	}
}

// Close frees the protected memory held by the storage.
func (s *MemoryStorage) Close() error {
	s.Clear()
	return nil
}
