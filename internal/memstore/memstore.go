// Package memstore is the bundled in-memory credential store. It exists so
// the binary runs without external credential storage; production deployments
// are expected to supply their own sessiongate.CredentialStore.
package memstore

import (
	"sync"

	"github.com/halcyonlab/sessiongate"
)

// Store is a process-local CredentialStore. Contents do not survive restart.
type Store struct {
	mu      sync.RWMutex
	byIdent map[string]sessiongate.Credential
}

func New() *Store {
	return &Store{byIdent: make(map[string]sessiongate.Credential)}
}

func (s *Store) GetByIdentifier(identifier string) (sessiongate.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byIdent[identifier]
	if !ok {
		return sessiongate.Credential{}, sessiongate.ErrCredentialNotFound
	}
	return cred, nil
}

func (s *Store) Create(cred sessiongate.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdent[cred.Identifier]; ok {
		return sessiongate.ErrCredentialExists
	}
	s.byIdent[cred.Identifier] = cred
	return nil
}

func (s *Store) Ping() error { return nil }
