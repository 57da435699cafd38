package localvault

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/godaddy/asherah/go/securememory"
	"github.com/godaddy/asherah/go/securememory/memguard"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/keelann95/localvault/internal"
	"github.com/keelann95/localvault/pkg/log"
)

// DefaultKeySlot is the session storage slot the key material is kept under.
const DefaultKeySlot = "localvault.session.key"

const (
	keyMaterialVersion = 1
	keyAlgorithm       = string(jose.A256GCM)
	keyUse             = "enc"

	usageEncrypt = "encrypt"
	usageDecrypt = "decrypt"
)

// KeyMaterial is the exported, storable form of a SymmetricKey. The key itself is
// carried as an RFC 7517 symmetric JSON Web Key.
type KeyMaterial struct {
	Version     int             `json:"v"`
	Created     int64           `json:"created"`
	Usages      []string        `json:"key_ops"`
	Extractable bool            `json:"ext"`
	Key         jose.JSONWebKey `json:"jwk"`
}

// SymmetricKey is an opaque handle to an AES-256-GCM session key. Its bytes are
// kept in protected memory and are only made readable by the Codec.
type SymmetricKey struct {
	key *internal.CryptoKey
}

// ID returns the key identifier recorded in its exported material.
func (k *SymmetricKey) ID() string {
	return k.key.ID()
}

// Created returns the time the key was generated as a Unix epoch in seconds.
func (k *SymmetricKey) Created() int64 {
	return k.key.Created()
}

// String returns a string with the key metadata. It never prints key bytes.
func (k *SymmetricKey) String() string {
	return fmt.Sprintf("SymmetricKey [id=%s created=%d]", k.ID(), k.Created())
}

// KeyManagerOption is used to configure additional options in a KeyManager.
type KeyManagerOption func(*KeyManager)

// WithKeySlot sets the session storage slot used to persist the key material.
func WithKeySlot(name string) KeyManagerOption {
	return func(m *KeyManager) {
		m.slot = name
	}
}

// WithSecretFactory sets the factory to use for creating the protected memory backing keys.
func WithSecretFactory(f securememory.SecretFactory) KeyManagerOption {
	return func(m *KeyManager) {
		m.SecretFactory = f
	}
}

// KeyManager owns the lifecycle of the single symmetric key of the active session.
// Keys are persisted as KeyMaterial in session-scoped storage so that every call
// within one session returns the same key.
type KeyManager struct {
	SecretFactory securememory.SecretFactory

	storage KeyStorage
	slot    string

	mu      sync.Mutex
	current *SymmetricKey
	digest  [sha256.Size]byte
	retired []*SymmetricKey
}

// NewKeyManager returns a KeyManager persisting key material in storage.
func NewKeyManager(storage KeyStorage, opts ...KeyManagerOption) *KeyManager {
	m := &KeyManager{
		SecretFactory: new(memguard.SecretFactory),
		storage:       storage,
		slot:          DefaultKeySlot,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// GetOrCreateKey returns the session key, importing it from session storage if
// present and generating and persisting a new one otherwise.
//
// Material that is present but cannot be imported fails with ErrKeyImport. It is
// never replaced, since a new key would make every stored envelope undecryptable.
func (m *KeyManager) GetOrCreateKey(ctx context.Context) (*SymmetricKey, error) {
	if m.storage == nil {
		return nil, errors.Wrap(ErrStorageUnavailable, "no session key storage configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	material, err := m.storage.Load(ctx, m.slot)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading key material from slot %s", m.slot)
	}

	if material != nil {
		return m.fromMaterial(material)
	}

	return m.createKey(ctx)
}

// fromMaterial returns the cached handle if material is unchanged, otherwise it
// imports the material and makes it the current key.
func (m *KeyManager) fromMaterial(material []byte) (*SymmetricKey, error) {
	defer internal.MemClr(material)

	digest := sha256.Sum256(material)
	if m.current != nil && digest == m.digest {
		return m.current, nil
	}

	key, err := importKey(m.SecretFactory, material)
	if err != nil {
		return nil, err
	}

	if log.DebugEnabled() {
		log.Debugf("[KeyManager] imported session key from slot %s: %s\n", m.slot, key)
	}

	m.setCurrent(key, digest)

	return key, nil
}

// createKey generates a new key and persists its exported material.
func (m *KeyManager) createKey(ctx context.Context) (*SymmetricKey, error) {
	key, err := generateKey(m.SecretFactory)
	if err != nil {
		return nil, err
	}

	material, err := exportKey(key)
	if err != nil {
		key.key.Close()
		return nil, err
	}

	defer internal.MemClr(material)

	digest := sha256.Sum256(material)

	if err := m.storage.Store(ctx, m.slot, material); err != nil {
		// never hand out a key that was not persisted
		key.key.Close()
		return nil, errors.Wrapf(err, "error storing key material in slot %s", m.slot)
	}

	log.Debugf("[KeyManager] generated new session key in slot %s: %s\n", m.slot, key)

	m.setCurrent(key, digest)

	return key, nil
}

// setCurrent replaces the current key. The previous handle may still be in use
// by a caller, so it is only closed when the manager is closed.
func (m *KeyManager) setCurrent(key *SymmetricKey, digest [sha256.Size]byte) {
	if m.current != nil {
		m.retired = append(m.retired, m.current)
	}

	m.current = key
	m.digest = digest
}

// Close frees the protected memory of every key handed out by this manager.
// Keys returned earlier MUST NOT be used afterwards.
func (m *KeyManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range m.retired {
		k.key.Close()
	}

	if m.current != nil {
		m.current.key.Close()
	}

	m.current = nil
	m.retired = nil
	m.digest = [sha256.Size]byte{}

	return nil
}

func generateKey(factory securememory.SecretFactory) (*SymmetricKey, error) {
	k, err := internal.GenerateKey(factory, uuid.NewString(), time.Now().Unix(), AES256KeySize)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoUnavailable, err.Error())
	}

	return &SymmetricKey{key: k}, nil
}

// exportKey serializes key into its KeyMaterial JSON form.
func exportKey(key *SymmetricKey) ([]byte, error) {
	return internal.WithKeyFunc(key.key, func(keyBytes []byte) ([]byte, error) {
		// go-jose keeps a reference to the key, so hand it a copy that can be wiped.
		raw := make([]byte, len(keyBytes))
		copy(raw, keyBytes)

		defer internal.MemClr(raw)

		b, err := json.Marshal(KeyMaterial{
			Version:     keyMaterialVersion,
			Created:     key.Created(),
			Usages:      []string{usageEncrypt, usageDecrypt},
			Extractable: true,
			Key: jose.JSONWebKey{
				Key:       raw,
				KeyID:     key.ID(),
				Algorithm: keyAlgorithm,
				Use:       keyUse,
			},
		})

		return b, errors.Wrap(err, "error exporting key material")
	})
}

// importKey parses material and returns a key handle restricted to encrypt and decrypt.
func importKey(factory securememory.SecretFactory, material []byte) (*SymmetricKey, error) {
	var km KeyMaterial
	if err := json.Unmarshal(material, &km); err != nil {
		return nil, errors.Wrap(ErrKeyImport, err.Error())
	}

	raw, err := validateMaterial(&km)
	if err != nil {
		return nil, err
	}

	// NewCryptoKey wipes raw once it has been copied into protected memory.
	k, err := internal.NewCryptoKey(factory, km.Key.KeyID, km.Created, raw)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoUnavailable, err.Error())
	}

	return &SymmetricKey{key: k}, nil
}

func validateMaterial(km *KeyMaterial) ([]byte, error) {
	raw, ok := km.Key.Key.([]byte)

	wipe := func() {
		if ok {
			internal.MemClr(raw)
		}
	}

	switch {
	case km.Version != keyMaterialVersion:
		wipe()
		return nil, errors.Wrapf(ErrKeyImport, "unsupported key material version %d", km.Version)
	case !ok:
		return nil, errors.Wrapf(ErrKeyImport, "unexpected key type %T", km.Key.Key)
	case km.Key.Algorithm != keyAlgorithm:
		wipe()
		return nil, errors.Wrapf(ErrKeyImport, "unexpected key algorithm %q", km.Key.Algorithm)
	case len(raw) != AES256KeySize:
		wipe()
		return nil, errors.Wrapf(ErrKeyImport, "invalid key size %d, must be %d bytes", len(raw), AES256KeySize)
	}

	if err := validateUsages(km.Usages); err != nil {
		wipe()
		return nil, err
	}

	return raw, nil
}

// validateUsages requires exactly the encrypt and decrypt usages.
func validateUsages(usages []string) error {
	var hasEncrypt, hasDecrypt bool

	for _, u := range usages {
		switch u {
		case usageEncrypt:
			hasEncrypt = true
		case usageDecrypt:
			hasDecrypt = true
		default:
			return errors.Wrapf(ErrKeyImport, "unsupported key usage %q", u)
		}
	}

	if !hasEncrypt || !hasDecrypt {
		return errors.Wrapf(ErrKeyImport, "key usages %v must include encrypt and decrypt", usages)
	}

	return nil
}
