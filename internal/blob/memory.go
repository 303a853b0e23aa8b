package blob

import (
	memorystore "chemident/internal/infra/blob/memory"
)

// NewMemory returns an in-memory blob.Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// Corrupt overwrites a blob held by a memory store, reporting whether it did.
// Other drivers are left untouched.
func Corrupt(s Store, key string, data []byte) bool {
	m, ok := s.(*memorystore.Store)
	if !ok {
		return false
	}
	return m.Corrupt(key, data)
}
