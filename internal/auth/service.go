package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/aegis/internal/shared"
)

// Service wraps API client authentication rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates a raw "<key_id>.<secret>" API key and returns the
// caller principal. Every failure collapses to ErrUnauthorized; callers learn
// nothing about which part was wrong.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*shared.Principal, error) {
	keyID, secret, ok := strings.Cut(rawKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, shared.ErrUnauthorized
	}
	client, err := s.repo.FindByKeyID(ctx, keyID)
	if err != nil {
		return nil, shared.ErrUnauthorized
	}
	if !client.IsActive {
		return nil, shared.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)); err != nil {
		return nil, shared.ErrUnauthorized
	}
	return &shared.Principal{ClientID: client.ID, Name: client.Name}, nil
}

// HashSecret produces the bcrypt hash stored for a client secret. Used by
// provisioning tooling and tests.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
