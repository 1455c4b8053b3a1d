package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

const graphMeURL = "https://graph.microsoft.com/v1.0/me"

// Microsoft exchanges codes against the Azure AD v2 endpoints. Microsoft's
// ID tokens omit profile fields for some account types, so the profile is
// read from the Graph /me endpoint instead.
type Microsoft struct {
	oauth2Config oauth2.Config
}

// NewMicrosoft builds the client for the configured tenant ("common" when
// unset, which accepts both organizational and personal accounts).
func NewMicrosoft(cfg conf.Provider, redirectURL string) *Microsoft {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email", "offline_access", "User.Read"}
	}

	return &Microsoft{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.AzureAD(tenant),
			Scopes:       scopes,
		},
	}
}

func (m *Microsoft) Name() string { return "microsoft" }

func (m *Microsoft) AuthCodeURL(state string) string {
	return m.oauth2Config.AuthCodeURL(state)
}

func (m *Microsoft) Exchange(ctx context.Context, code string) (*biz.ExternalIdentity, error) {
	tok, err := m.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	profile, err := m.fetchProfile(ctx, tok)
	if err != nil {
		return nil, err
	}

	// Personal accounts often have no mail attribute; the UPN is the
	// address in that case.
	email := profile.Mail
	if email == "" {
		email = profile.UserPrincipalName
	}

	return &biz.ExternalIdentity{
		Provider:     m.Name(),
		ExternalID:   profile.ID,
		Email:        email,
		DisplayName:  profile.DisplayName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}, nil
}

type graphProfile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (m *Microsoft) fetchProfile(ctx context.Context, tok *oauth2.Token) (*graphProfile, error) {
	client := m.oauth2Config.Client(ctx, tok)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, graphMeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request returned status %d", resp.StatusCode)
	}

	var profile graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}
