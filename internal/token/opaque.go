package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"social-auth-service/internal/biz"
)

// OpaqueIssuer issues random bearer secrets with no expiry. Only a SHA-256
// hash of the secret is persisted; the plaintext goes to the caller once
// and cannot be recovered.
type OpaqueIssuer struct {
	repo biz.AccessTokenRepo
	now  func() time.Time
}

func NewOpaqueIssuer(repo biz.AccessTokenRepo) *OpaqueIssuer {
	return &OpaqueIssuer{repo: repo, now: time.Now}
}

func (i *OpaqueIssuer) Issue(ctx context.Context, account *biz.Account, provider string) (*biz.Credential, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	sum := sha256.Sum256([]byte(secret))
	record := biz.AccessToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Name:      provider + "-oauth-token",
		TokenHash: hex.EncodeToString(sum[:]),
		CreatedAt: i.now(),
	}
	if err := i.repo.CreateAccessToken(ctx, record); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	return &biz.Credential{Token: secret, TokenType: "Bearer"}, nil
}
