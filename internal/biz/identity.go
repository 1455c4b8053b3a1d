package biz

import (
	"context"
	"time"
)

// ExternalIdentity is one identity assertion returned by a provider for one
// authenticated user in one callback. It contains facts only, no decisions,
// and is never persisted as-is.
type ExternalIdentity struct {
	Provider     string // e.g. "google", "microsoft"
	ExternalID   string // provider-scoped unique user identifier (sub)
	Email        string
	DisplayName  string
	AvatarURL    string
	AccessToken  string
	RefreshToken string // may be empty; providers only return it on first consent
}

// Exchanger converts an authorization code into an ExternalIdentity.
// Implementations talk to the external provider and must not create
// accounts, issue credentials, or touch any store.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*ExternalIdentity, error)
}

// Account is one persisted user account. Attrs carries the stored attribute
// set keyed by internal attribute (column) name; the well-known fields are
// lifted out for convenience. Which attribute names exist is governed by the
// field-mapping configuration, so anything beyond the lifted fields is only
// reachable through Attrs.
type Account struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Attrs     map[string]any
}

// Attr returns the named attribute or nil.
func (a *Account) Attr(name string) any {
	if a.Attrs == nil {
		return nil
	}
	return a.Attrs[name]
}

// StringAttr returns the named attribute as a string, or "" when absent or
// not a string.
func (a *Account) StringAttr(name string) string {
	s, _ := a.Attr(name).(string)
	return s
}

// AccountSummary is the public-safe projection of an account returned on a
// completed callback. It never carries provider tokens or the password
// placeholder.
type AccountSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Provider  string    `json:"oauth_provider"`
	CreatedAt time.Time `json:"created_at"`
}
