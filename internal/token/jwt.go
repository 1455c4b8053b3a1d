package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"social-auth-service/internal/biz"
)

// JWTIssuer issues HS256-signed, time-boxed credentials carrying the
// configured scope set. Nothing is persisted; the signature is the proof.
type JWTIssuer struct {
	key      []byte
	lifetime time.Duration
	scopes   []string
	now      func() time.Time
}

func NewJWTIssuer(key []byte, lifetime time.Duration, scopes []string) *JWTIssuer {
	return &JWTIssuer{key: key, lifetime: lifetime, scopes: scopes, now: time.Now}
}

type claims struct {
	jwt.RegisteredClaims
	Email    string   `json:"email,omitempty"`
	Provider string   `json:"provider"`
	Scopes   []string `json:"scopes,omitempty"`
}

func (i *JWTIssuer) Issue(ctx context.Context, account *biz.Account, provider string) (*biz.Credential, error) {
	if len(i.key) == 0 {
		return nil, fmt.Errorf("jwt signing key is not configured")
	}

	issued := i.now()
	expires := issued.Add(i.lifetime)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:    account.Email,
		Provider: provider,
		Scopes:   i.scopes,
	})
	signed, err := tok.SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	// Remaining whole seconds at issuance, clamped so a zero or negative
	// lifetime never reports a negative expiry.
	remaining := int64(expires.Sub(i.now()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return &biz.Credential{Token: signed, TokenType: "Bearer", ExpiresIn: &remaining}, nil
}
