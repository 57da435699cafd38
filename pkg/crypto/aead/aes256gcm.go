package aead

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
)

// aesGCMCipherFactory returns a AEAD cipher using AES/GCM. Only 256-bit keys are accepted.
func aesGCMCipherFactory(key []byte) (cipher.AEAD, error) {
	if len(key) != localvault.AES256KeySize {
		return nil, errors.Errorf("invalid key size %d, must be %d bytes", len(key), localvault.AES256KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// NewAES256GCM returns the logic required to encrypt data using AES-256/GCM with 12 byte nonces.
func NewAES256GCM() localvault.AEAD {
	return cryptoFunc(aesGCMCipherFactory)
}
