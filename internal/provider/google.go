package provider

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

const googleIssuer = "https://accounts.google.com"

// Google exchanges codes against Google's OIDC endpoints. Profile fields
// come from the verified ID token, so no userinfo round trip is needed.
type Google struct {
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
}

// NewGoogle discovers Google's OIDC configuration and builds the client.
func NewGoogle(ctx context.Context, cfg conf.Provider, redirectURL string) (*Google, error) {
	oidcProvider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &Google{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (g *Google) Name() string { return "google" }

// AuthCodeURL requests offline access so Google returns a refresh token on
// first consent.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (g *Google) Exchange(ctx context.Context, code string) (*biz.ExternalIdentity, error) {
	tok, err := g.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("token response has no id_token")
	}
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token claims: %w", err)
	}

	return &biz.ExternalIdentity{
		Provider:     g.Name(),
		ExternalID:   claims.Sub,
		Email:        claims.Email,
		DisplayName:  claims.Name,
		AvatarURL:    claims.Picture,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}
