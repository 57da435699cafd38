package persistence

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
)

// Verify MemoryRecordStore implements the RecordStore interface.
var _ localvault.RecordStore = (*MemoryRecordStore)(nil)

// MemoryRecordStore is an in-memory implementation of a RecordStore.
// NOTE: Records do not survive the process. It is meant for tests and for
// callers that explicitly opt into a non-durable store.
type MemoryRecordStore struct {
	sync.RWMutex

	lastID  atomic.Int64
	isOpen  bool
	records map[int64]localvault.Envelope
}

// NewMemoryRecordStore returns a new, unopened in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[int64]localvault.Envelope),
	}
}

// Open marks the store open. Opening an open store is a no-op.
func (s *MemoryRecordStore) Open(_ context.Context) error {
	s.Lock()
	defer s.Unlock()

	s.isOpen = true

	return nil
}

// Insert stores a copy of e under the next id.
func (s *MemoryRecordStore) Insert(_ context.Context, e localvault.Envelope) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, errors.Wrap(err, "refusing to store malformed envelope")
	}

	s.Lock()
	defer s.Unlock()

	if !s.isOpen {
		return 0, localvault.ErrStoreNotOpen
	}

	id := s.lastID.Add(1)
	s.records[id] = copyEnvelope(e)

	return id, nil
}

// GetAll returns copies of every record ordered by id ascending.
func (s *MemoryRecordStore) GetAll(_ context.Context) ([]localvault.StoredRecord, error) {
	s.RLock()
	defer s.RUnlock()

	if !s.isOpen {
		return nil, localvault.ErrStoreNotOpen
	}

	records := make([]localvault.StoredRecord, 0, len(s.records))
	for id, e := range s.records {
		records = append(records, localvault.StoredRecord{ID: id, Envelope: copyEnvelope(e)})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return records, nil
}

// Delete removes the record with the given id.
func (s *MemoryRecordStore) Delete(_ context.Context, id int64) error {
	s.Lock()
	defer s.Unlock()

	if !s.isOpen {
		return localvault.ErrStoreNotOpen
	}

	if _, ok := s.records[id]; !ok {
		return errors.Wrapf(localvault.ErrRecordNotFound, "id %d", id)
	}

	delete(s.records, id)

	return nil
}

// SchemaVersion always reports CurrentSchemaVersion for an open store.
func (s *MemoryRecordStore) SchemaVersion(_ context.Context) (int, error) {
	s.RLock()
	defer s.RUnlock()

	if !s.isOpen {
		return 0, localvault.ErrStoreNotOpen
	}

	return CurrentSchemaVersion, nil
}

// Close marks the store unopened. Records are kept until the store is garbage collected.
func (s *MemoryRecordStore) Close() error {
	s.Lock()
	defer s.Unlock()

	s.isOpen = false

	return nil
}

func copyEnvelope(e localvault.Envelope) localvault.Envelope {
	return localvault.Envelope{
		Ciphertext: append([]byte(nil), e.Ciphertext...),
		IV:         append([]byte(nil), e.IV...),
	}
}
