package services

import (
	"context"
	"fmt"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
	"strings"
)

// CredentialResolver picks the provider key for a caller: the caller's
// stored personal key when present, otherwise the shared service key.
type CredentialResolver struct {
	keys      ports.ProviderKeyStore
	sharedKey string
}

func NewCredentialResolver(keys ports.ProviderKeyStore, sharedKey string) *CredentialResolver {
	return &CredentialResolver{keys: keys, sharedKey: strings.TrimSpace(sharedKey)}
}

// Resolve returns domain.ErrNoCredential when neither tier has a key.
// An empty userID means an anonymous caller.
func (r *CredentialResolver) Resolve(ctx context.Context, userID string) (domain.Credential, error) {
	if userID != "" && r.keys != nil {
		key, err := r.keys.GetProviderKey(ctx, userID)
		if err != nil {
			return domain.Credential{}, fmt.Errorf("resolve credential: load user key: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			return domain.Credential{Source: domain.KeySourceUser, Key: key}, nil
		}
	}

	if r.sharedKey != "" {
		return domain.Credential{Source: domain.KeySourceShared, Key: r.sharedKey}, nil
	}

	return domain.Credential{}, domain.ErrNoCredential
}
