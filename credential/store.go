package credential

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreUnavailable is returned when the backing storage cannot be read or
// written.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Store persists the process-wide [Credential]. Implementations must be safe
// for concurrent use; every method is atomic with respect to the others.
type Store interface {
	// Load returns the current credential. A missing credential is the zero
	// value, not an error.
	Load(ctx context.Context) (Credential, error)
	// Save replaces the whole credential.
	Save(ctx context.Context, c Credential) error
	// Update overlays the non-empty fields of patch onto the stored credential.
	Update(ctx context.Context, patch Credential) error
	// Clear removes every stored value.
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	cred Credential
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial Credential) *MemoryStore {
	return &MemoryStore{cred: initial}
}

func (s *MemoryStore) Load(context.Context) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, nil
}

func (s *MemoryStore) Save(_ context.Context, c Credential) error {
	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, patch Credential) error {
	s.mu.Lock()
	s.cred = s.cred.merge(patch)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.cred = Credential{}
	s.mu.Unlock()
	return nil
}
