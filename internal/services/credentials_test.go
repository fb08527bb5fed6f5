package services

import (
	"context"
	"errors"
	"testing"

	"manifest-route-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialResolver(t *testing.T) {
	ctx := context.Background()
	store := &keyStoreMock{keys: map[string]string{"alice": "alice-key", "bob": "  "}}

	t.Run("user tier", func(t *testing.T) {
		c, err := NewCredentialResolver(store, "shared-key").Resolve(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.Credential{Source: domain.KeySourceUser, Key: "alice-key"}, c)
	})

	t.Run("shared fallback for user without key", func(t *testing.T) {
		c, err := NewCredentialResolver(store, "shared-key").Resolve(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, domain.KeySourceShared, c.Source)
		assert.Equal(t, "shared-key", c.Key)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		c, err := NewCredentialResolver(store, "shared-key").Resolve(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, domain.KeySourceShared, c.Source)
	})

	t.Run("no key anywhere", func(t *testing.T) {
		_, err := NewCredentialResolver(store, "").Resolve(ctx, "bob")
		assert.ErrorIs(t, err, domain.ErrNoCredential)
	})

	t.Run("store failure", func(t *testing.T) {
		broken := &keyStoreMock{keys: map[string]string{}, err: errors.New("db down")}
		_, err := NewCredentialResolver(broken, "shared-key").Resolve(ctx, "alice")
		assert.Error(t, err)
	})

	t.Run("credential never prints key", func(t *testing.T) {
		c, _ := NewCredentialResolver(store, "shared-key").Resolve(ctx, "alice")
		assert.NotContains(t, c.String(), "alice-key")
	})
}
