package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aegis/internal/shared"
)

type memoryRepo struct {
	clients map[string]Client
}

func (m *memoryRepo) FindByKeyID(_ context.Context, keyID string) (*Client, error) {
	client, ok := m.clients[keyID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &client, nil
}

func seedClient(t *testing.T, keyID, secret string, active bool) *memoryRepo {
	t.Helper()
	hash, err := HashSecret(secret)
	require.NoError(t, err)
	return &memoryRepo{clients: map[string]Client{
		keyID: {ID: 42, Name: "ci-bot", KeyID: keyID, SecretHash: hash, IsActive: active},
	}}
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(seedClient(t, "ak_live", "s3cret", true))

	principal, err := svc.Authenticate(context.Background(), "ak_live.s3cret")
	require.NoError(t, err)
	require.Equal(t, int64(42), principal.ClientID)
	require.Equal(t, "ci-bot", principal.Name)
}

func TestAuthenticateFailures(t *testing.T) {
	svc := NewService(seedClient(t, "ak_live", "s3cret", true))

	// Every failure collapses to the same error.
	for _, raw := range []string{
		"",
		"ak_live",
		"ak_live.",
		".s3cret",
		"ak_live.wrong",
		"unknown.s3cret",
	} {
		_, err := svc.Authenticate(context.Background(), raw)
		require.ErrorIs(t, err, shared.ErrUnauthorized, "raw key %q", raw)
	}
}

func TestAuthenticateInactiveClient(t *testing.T) {
	svc := NewService(seedClient(t, "ak_live", "s3cret", false))

	_, err := svc.Authenticate(context.Background(), "ak_live.s3cret")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestAuthenticateSecretMayContainDots(t *testing.T) {
	svc := NewService(seedClient(t, "ak_live", "s3.cr.et", true))

	principal, err := svc.Authenticate(context.Background(), "ak_live.s3.cr.et")
	require.NoError(t, err)
	require.Equal(t, int64(42), principal.ClientID)
}
