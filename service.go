package localvault

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/keelann95/localvault/pkg/log"
)

// Service metrics
var (
	putTimer           = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.service.put", MetricsPrefix), nil)
	getAllTimer        = metrics.GetOrRegisterTimer(fmt.Sprintf("%s.service.getall", MetricsPrefix), nil)
	undecryptableCount = metrics.GetOrRegisterCounter(fmt.Sprintf("%s.service.undecryptable", MetricsPrefix), nil)
)

// FailureKind classifies why a stored record could not be returned.
type FailureKind string

// RecordUndecryptable marks a record whose envelope failed authentication, most
// likely because it was sealed under a key from an earlier session.
const RecordUndecryptable FailureKind = "RecordUndecryptable"

// Payload is one decrypted record.
type Payload struct {
	ID   int64
	Data []byte
}

// RecordFailure reports a single record GetAll could not return.
type RecordFailure struct {
	ID   int64
	Kind FailureKind
	Err  error
}

// Error implements error.
func (f RecordFailure) Error() string {
	return fmt.Sprintf("record %d: %s: %v", f.ID, f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f RecordFailure) Unwrap() error {
	return f.Err
}

// Result contains the records GetAll decrypted, in id order, along with the
// records it could not.
type Result struct {
	Payloads []Payload
	Failures []RecordFailure
}

// Data returns the decrypted payloads without their ids.
func (r *Result) Data() [][]byte {
	data := make([][]byte, 0, len(r.Payloads))
	for _, p := range r.Payloads {
		data = append(data, p.Data)
	}

	return data
}

// ServiceOption is used to configure additional options in a Service.
type ServiceOption func(*Service)

// WithMetrics enables or disables metrics.
func WithMetrics(enabled bool) ServiceOption {
	return func(*Service) {
		if !enabled {
			metrics.DefaultRegistry.UnregisterAll()
		}
	}
}

// Service composes a KeyManager, a Codec and a RecordStore into the two
// operations exposed to UI collaborators: Put and GetAll.
type Service struct {
	Keys  *KeyManager
	Codec *Codec
	Store RecordStore
}

// NewService returns a Service using the provided components. The store must be
// opened by the caller before use.
func NewService(keys *KeyManager, codec *Codec, store RecordStore, opts ...ServiceOption) *Service {
	s := &Service{
		Keys:  keys,
		Codec: codec,
		Store: store,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Put encrypts payload with the session key and stores the resulting envelope.
// It returns the id assigned by the store. Errors from any step are returned
// unchanged.
func (s *Service) Put(ctx context.Context, payload []byte) (int64, error) {
	defer putTimer.UpdateSince(time.Now())

	key, err := s.Keys.GetOrCreateKey(ctx)
	if err != nil {
		return 0, err
	}

	e, err := s.Codec.Encrypt(ctx, payload, key)
	if err != nil {
		return 0, err
	}

	return s.Store.Insert(ctx, *e)
}

// GetAll retrieves and decrypts every stored record. A record failing
// authentication is reported in Result.Failures instead of aborting the batch;
// any other error is returned unchanged.
func (s *Service) GetAll(ctx context.Context) (*Result, error) {
	defer getAllTimer.UpdateSince(time.Now())

	records, err := s.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Payloads: make([]Payload, 0, len(records)),
	}

	if len(records) == 0 {
		return result, nil
	}

	key, err := s.Keys.GetOrCreateKey(ctx)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		data, err := s.Codec.Decrypt(ctx, r.Envelope, key)

		switch {
		case err == nil:
			result.Payloads = append(result.Payloads, Payload{ID: r.ID, Data: data})
		case errors.Is(err, ErrAuthentication):
			undecryptableCount.Inc(1)
			log.Debugf("[Service] record %d is undecryptable with key %s: %v\n", r.ID, key.ID(), err)

			result.Failures = append(result.Failures, RecordFailure{
				ID:   r.ID,
				Kind: RecordUndecryptable,
				Err:  err,
			})
		default:
			return nil, err
		}
	}

	return result, nil
}

// Delete removes the stored record with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.Store.Delete(ctx, id)
}

// Close frees the session keys held in memory and closes the store.
func (s *Service) Close() error {
	keysErr := s.Keys.Close()

	if err := s.Store.Close(); err != nil {
		return err
	}

	return keysErr
}
