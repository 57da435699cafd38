package internal

import (
	"crypto/rand"
	"runtime"

	"github.com/pkg/errors"
)

// MemClr takes a buffer and wipes it with zeroes.
func MemClr(buf []byte) {
	clear(buf)
}

// FillRandom takes a buffer and overwrites it with cryptographically-secure random bytes.
func FillRandom(buf []byte) error {
	return fillRandom(buf, rand.Read)
}

func fillRandom(buf []byte, r func([]byte) (int, error)) error {
	n, err := r(buf)
	if err != nil {
		return errors.Wrap(err, "error reading random source")
	}

	if n != len(buf) {
		return errors.Errorf("short read from random source: %d of %d bytes", n, len(buf))
	}

	// Prevent dead store elimination in case a caller wants the backing array randomized even if no longer used.
	runtime.KeepAlive(buf)

	return nil
}

// GetRandBytes returns a slice of a specified length, filled with cryptographically-secure random bytes.
func GetRandBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := FillRandom(buf); err != nil {
		return nil, err
	}

	return buf, nil
}
