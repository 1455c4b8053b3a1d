package biz

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAccountNotFound is returned by lookups that match no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateAccount is returned by Create when a uniqueness
	// constraint (email or provider id) is violated.
	ErrDuplicateAccount = errors.New("account already exists")
)

// AccountRepo is the account store. Create must be atomic: a uniqueness
// violation leaves no partial row behind. idAttr is the internal attribute
// (column) name holding the provider-scoped external id, which the
// field-mapping configuration may have renamed.
type AccountRepo interface {
	FindByProviderID(ctx context.Context, idAttr, externalID string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, attrs map[string]any) (*Account, error)
	Update(ctx context.Context, id string, attrs map[string]any) (*Account, error)
}

// AccessToken is one persisted opaque credential. Only the SHA-256 hash of
// the secret is stored; the plaintext is returned to the caller once.
type AccessToken struct {
	ID        string
	AccountID string
	Name      string
	TokenHash string
	CreatedAt time.Time
}

// AccessTokenRepo persists opaque credentials for the non-expiring
// issuance strategy.
type AccessTokenRepo interface {
	CreateAccessToken(ctx context.Context, t AccessToken) error
}

// PendingStore bridges the provider redirect round trip: attributes a user
// submits before the redirect are stashed under their session key and
// consumed exactly once at callback time.
//
// Stash overwrites any prior entry for the key (last write wins). Take is an
// atomic remove-and-return: a second Take for the same key, sequential or
// concurrent, returns an empty map. A missing key is not an error.
type PendingStore interface {
	Stash(ctx context.Context, key string, attrs map[string]string) error
	Take(ctx context.Context, key string) (map[string]string, error)
}

// Credential is the application-scoped credential returned to the caller
// after successful resolution. ExpiresIn is nil for non-expiring
// credentials, otherwise the non-negative remaining seconds at issuance.
type Credential struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn *int64 `json:"expires_in,omitempty"`
}

// TokenIssuer produces the application credential for a resolved account.
// The concrete strategy is selected once at startup.
type TokenIssuer interface {
	Issue(ctx context.Context, account *Account, provider string) (*Credential, error)
}
