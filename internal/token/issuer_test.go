package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
	"social-auth-service/internal/data"
)

func testAccount() *biz.Account {
	return &biz.Account{
		ID:    "acct-1",
		Email: "jane@example.com",
		Attrs: map[string]any{"email": "jane@example.com"},
	}
}

func TestOpaqueIssueHasNoExpiry(t *testing.T) {
	repo := data.NewMemoryAccountRepo()
	issuer := NewOpaqueIssuer(repo)

	cred, err := issuer.Issue(context.Background(), testAccount(), "google")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if cred.Token == "" {
		t.Fatal("empty token")
	}
	if cred.TokenType != "Bearer" {
		t.Errorf("token type = %q", cred.TokenType)
	}
	if cred.ExpiresIn != nil {
		t.Errorf("opaque credential must not expire, got %d", *cred.ExpiresIn)
	}
}

func TestOpaquePersistsHashNotPlaintext(t *testing.T) {
	repo := data.NewMemoryAccountRepo()
	issuer := NewOpaqueIssuer(repo)

	cred, err := issuer.Issue(context.Background(), testAccount(), "google")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tokens := repo.AccessTokens()
	if len(tokens) != 1 {
		t.Fatalf("persisted tokens = %d, want 1", len(tokens))
	}
	record := tokens[0]
	if record.Name != "google-oauth-token" {
		t.Errorf("token name = %q", record.Name)
	}
	if record.AccountID != "acct-1" {
		t.Errorf("account id = %q", record.AccountID)
	}
	sum := sha256.Sum256([]byte(cred.Token))
	if record.TokenHash != hex.EncodeToString(sum[:]) {
		t.Error("stored hash does not match issued secret")
	}
	if record.TokenHash == cred.Token {
		t.Error("plaintext secret was persisted")
	}
}

func TestOpaqueTokensAreUnique(t *testing.T) {
	repo := data.NewMemoryAccountRepo()
	issuer := NewOpaqueIssuer(repo)
	ctx := context.Background()

	a, _ := issuer.Issue(ctx, testAccount(), "google")
	b, _ := issuer.Issue(ctx, testAccount(), "google")
	if a.Token == b.Token {
		t.Error("two issuances produced the same secret")
	}
}

func TestJWTIssueCarriesClaimsAndExpiry(t *testing.T) {
	issuer := NewJWTIssuer([]byte("test-key"), time.Hour, []string{"profile", "email"})
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	cred, err := issuer.Issue(context.Background(), testAccount(), "google")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if cred.ExpiresIn == nil || *cred.ExpiresIn != 3600 {
		t.Fatalf("expires_in = %v, want 3600", cred.ExpiresIn)
	}

	var parsed claims
	_, err = jwt.ParseWithClaims(cred.Token, &parsed, func(*jwt.Token) (any, error) {
		return []byte("test-key"), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("failed to parse issued token: %v", err)
	}
	if parsed.Subject != "acct-1" {
		t.Errorf("sub = %q", parsed.Subject)
	}
	if parsed.Provider != "google" {
		t.Errorf("provider = %q", parsed.Provider)
	}
	if len(parsed.Scopes) != 2 || parsed.Scopes[0] != "profile" {
		t.Errorf("scopes = %v", parsed.Scopes)
	}
	if !parsed.ExpiresAt.Time.Equal(fixed.Add(time.Hour)) {
		t.Errorf("exp = %v", parsed.ExpiresAt.Time)
	}
}

func TestJWTExpiresInNeverNegative(t *testing.T) {
	issuer := NewJWTIssuer([]byte("test-key"), -time.Minute, nil)

	cred, err := issuer.Issue(context.Background(), testAccount(), "google")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if cred.ExpiresIn == nil || *cred.ExpiresIn != 0 {
		t.Errorf("expires_in = %v, want 0", cred.ExpiresIn)
	}
}

func TestNewIssuerSelectsStrategy(t *testing.T) {
	repo := data.NewMemoryAccountRepo()

	if _, err := NewIssuer(conf.Token{Strategy: "opaque"}, repo); err != nil {
		t.Errorf("opaque: %v", err)
	}
	if _, err := NewIssuer(conf.Token{Strategy: "jwt", SigningKey: "k", Lifetime: conf.Duration(time.Hour)}, repo); err != nil {
		t.Errorf("jwt: %v", err)
	}
	if _, err := NewIssuer(conf.Token{Strategy: "jwt"}, repo); err == nil {
		t.Error("jwt without signing key must fail at startup")
	}
	if _, err := NewIssuer(conf.Token{Strategy: "paseto"}, repo); err == nil {
		t.Error("unknown strategy must fail")
	}
}
