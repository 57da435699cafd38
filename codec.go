package localvault

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/keelann95/localvault/internal"
)

// MetricsPrefix prefixes all metrics names
const MetricsPrefix = "lv"

// Codec metrics
var (
	encryptTimer = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.codec.encrypt", MetricsPrefix), nil)
	decryptTimer = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.codec.decrypt", MetricsPrefix), nil)
)

// Codec turns plaintext payloads into Envelopes and back using a SymmetricKey.
type Codec struct {
	Crypto AEAD
}

// NewCodec returns a Codec sealing payloads with crypto.
func NewCodec(crypto AEAD) *Codec {
	return &Codec{Crypto: crypto}
}

// Encrypt seals payload with key under a fresh random IV. The IV is generated
// by the AEAD for every call and is never taken from the caller.
func (c *Codec) Encrypt(_ context.Context, payload []byte, key *SymmetricKey) (*Envelope, error) {
	defer encryptTimer.UpdateSince(time.Now())

	if c.Crypto == nil {
		return nil, errors.Wrap(ErrCryptoUnavailable, "no AEAD configured")
	}

	if key == nil {
		return nil, errors.New("key cannot be nil")
	}

	var iv []byte

	ciphertext, err := internal.WithKeyFunc(key.key, func(keyBytes []byte) ([]byte, error) {
		ct, nonce, err := c.Crypto.Seal(payload, keyBytes)
		iv = nonce

		return ct, err
	})
	if err != nil {
		return nil, err
	}

	if len(iv) != IVSize {
		return nil, errors.Wrapf(ErrCryptoUnavailable, "AEAD produced a %d byte iv, expected %d", len(iv), IVSize)
	}

	return &Envelope{
		Ciphertext: ciphertext,
		IV:         iv,
	}, nil
}

// Decrypt verifies and opens e with key. A tampered envelope or one sealed under
// a different key fails with ErrAuthentication.
func (c *Codec) Decrypt(_ context.Context, e Envelope, key *SymmetricKey) ([]byte, error) {
	defer decryptTimer.UpdateSince(time.Now())

	if c.Crypto == nil {
		return nil, errors.Wrap(ErrCryptoUnavailable, "no AEAD configured")
	}

	if key == nil {
		return nil, errors.New("key cannot be nil")
	}

	if err := e.Validate(); err != nil {
		return nil, errors.Wrap(ErrAuthentication, err.Error())
	}

	return internal.WithKeyFunc(key.key, func(keyBytes []byte) ([]byte, error) {
		return c.Crypto.Open(e.Ciphertext, e.IV, keyBytes)
	})
}
