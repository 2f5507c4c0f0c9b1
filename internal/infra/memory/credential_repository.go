package memory

import (
	"context"
	"sync"

	"quizmint-service/internal/domain"
)

// CredentialRepository is a map-backed credential store keyed by (kind, token).
type CredentialRepository struct {
	mu          sync.RWMutex
	credentials map[credentialKey]domain.Credential
}

type credentialKey struct {
	kind    domain.CredentialKind
	tokenID string
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{credentials: make(map[credentialKey]domain.Credential)}
}

func (r *CredentialRepository) Get(_ context.Context, kind domain.CredentialKind, tokenID string) (domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	credential, ok := r.credentials[credentialKey{kind: kind, tokenID: tokenID}]
	if !ok {
		return domain.Credential{}, domain.ErrMetadataNotFound
	}
	return credential, nil
}

// Save keeps the first write; re-saving an existing token is a no-op, matching
// the postgres ON CONFLICT DO NOTHING behavior.
func (r *CredentialRepository) Save(_ context.Context, credential domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := credentialKey{kind: credential.Kind, tokenID: credential.TokenID}
	if _, exists := r.credentials[key]; exists {
		return nil
	}
	r.credentials[key] = credential
	return nil
}
