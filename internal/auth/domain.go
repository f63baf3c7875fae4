package auth

import "time"

// Client represents a service consuming the decision API. Clients present an
// API key of the form "<key_id>.<secret>"; only the bcrypt hash of the secret
// is stored.
type Client struct {
	ID         int64
	Name       string
	KeyID      string
	SecretHash string
	IsActive   bool
	CreatedAt  time.Time
}
