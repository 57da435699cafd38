package aead

import (
	"crypto/cipher"

	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
	"github.com/keelann95/localvault/internal"
)

type cryptoFunc func(key []byte) (cipher.AEAD, error)

// Seal encrypts data using the provided key bytes under a freshly generated nonce.
func (c cryptoFunc) Seal(data, key []byte) ([]byte, []byte, error) {
	aeadCipher, err := c(key)
	if err != nil {
		return nil, nil, errors.Wrap(localvault.ErrCryptoUnavailable, err.Error())
	}

	nonce := make([]byte, aeadCipher.NonceSize())
	if err := internal.FillRandom(nonce); err != nil {
		return nil, nil, errors.Wrap(localvault.ErrCryptoUnavailable, err.Error())
	}

	ciphertext := aeadCipher.Seal(make([]byte, 0, len(data)+aeadCipher.Overhead()), nonce, data, nil)

	return ciphertext, nonce, nil
}

// Open decrypts ciphertext using the provided key and the nonce it was sealed with.
func (c cryptoFunc) Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aeadCipher, err := c(key)
	if err != nil {
		return nil, errors.Wrap(localvault.ErrCryptoUnavailable, err.Error())
	}

	// a nonce of the wrong size cannot have come from Seal
	if len(nonce) != aeadCipher.NonceSize() {
		return nil, errors.Wrapf(localvault.ErrAuthentication, "nonce length %d, expected %d", len(nonce), aeadCipher.NonceSize())
	}

	if len(ciphertext) < aeadCipher.Overhead() {
		return nil, errors.Wrap(localvault.ErrAuthentication, "data length is shorter than tag size")
	}

	d, err := aeadCipher.Open(make([]byte, 0, len(ciphertext)-aeadCipher.Overhead()), nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(localvault.ErrAuthentication, "error decrypting data")
	}

	return d, nil
}
