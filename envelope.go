package localvault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Envelope is the only form a record exists in at rest. Ciphertext contains
// the AES-GCM output including its authentication tag and IV holds the nonce
// generated for that single encryption.
type Envelope struct {
	Ciphertext []byte `json:"ciphertext"`
	IV         []byte `json:"iv"`
}

// String returns a string with the Envelope sizes. It never prints contents.
func (e Envelope) String() string {
	return fmt.Sprintf("Envelope [ciphertext=%dB iv=%dB]", len(e.Ciphertext), len(e.IV))
}

// Validate checks the shape of an envelope before it is stored or opened.
func (e Envelope) Validate() error {
	if len(e.IV) != IVSize {
		return errors.Errorf("invalid iv length %d, must be %d bytes", len(e.IV), IVSize)
	}

	if len(e.Ciphertext) < TagSize {
		return errors.Errorf("ciphertext length %d is shorter than the authentication tag", len(e.Ciphertext))
	}

	return nil
}

// StoredRecord is an Envelope plus the identifier the RecordStore assigned to it.
type StoredRecord struct {
	ID int64 `json:"id"`
	Envelope
}
