// Package keybackend loads access/secret key pairs and answers credential
// lookups for the gateway's basic authentication.
package keybackend

import (
	"crypto/subtle"
	"fmt"
)

// SecretStore resolves an access key to its secret.
type SecretStore interface {
	Lookup(accessKey string) (string, error)
}

// MapSecretStore retrieves keys from an in-memory map. It is read-only after
// construction and safe for concurrent use.
type MapSecretStore struct {
	keys map[string]string
}

var _ SecretStore = (*MapSecretStore)(nil)

// NewMapSecretStore creates a new map-based secret store with the given access key to secret key mapping.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	return &MapSecretStore{keys: keys}
}

// Lookup retrieves the secret key for the given access key from the map.
func (s *MapSecretStore) Lookup(accessKey string) (string, error) {
	secretKey, found := s.keys[accessKey]
	if !found {
		return "", fmt.Errorf("lookup %q: %w", accessKey, ErrKeyNotFound)
	}
	return secretKey, nil
}

// Verify reports whether secret matches the stored secret for accessKey.
// The comparison runs in constant time.
func (s *MapSecretStore) Verify(accessKey, secret string) bool {
	stored, err := s.Lookup(accessKey)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
}

// Len returns the number of keys in the store.
func (s *MapSecretStore) Len() int {
	return len(s.keys)
}
