package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"social-auth-service/internal/api"
	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
	"social-auth-service/internal/provider"
)

// authService implements api.AuthService: it resolves providers from the
// registry, drives the callback flow, and translates between DTOs and the
// domain types.
type authService struct {
	registry *provider.Registry
	states   *provider.StateStore
	flow     *biz.CallbackFlow
	pending  biz.PendingStore
	fields   []conf.RequiredField
	logger   *slog.Logger
}

func NewAuthService(
	registry *provider.Registry,
	states *provider.StateStore,
	flow *biz.CallbackFlow,
	pending biz.PendingStore,
	fields []conf.RequiredField,
	logger *slog.Logger,
) api.AuthService {
	return &authService{
		registry: registry,
		states:   states,
		flow:     flow,
		pending:  pending,
		fields:   fields,
		logger:   logger,
	}
}

// AuthorizeURL builds an authorization URL for an API client. The state is
// random but not stored: API clients carry and verify it themselves.
func (s *authService) AuthorizeURL(name string) (string, error) {
	p, ok := s.registry.Get(name)
	if !ok {
		return "", s.unknownProvider(name)
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return p.AuthCodeURL(base64.RawURLEncoding.EncodeToString(b)), nil
}

// InitiateURL builds an authorization URL for the browser flow with a
// one-time server-side state.
func (s *authService) InitiateURL(name string) (string, error) {
	p, ok := s.registry.Get(name)
	if !ok {
		return "", s.unknownProvider(name)
	}
	state, err := s.states.Issue(name)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

func (s *authService) ConsumeState(name, state string) bool {
	if state == "" {
		return false
	}
	return s.states.Consume(state, name)
}

func (s *authService) HandleCallback(ctx context.Context, name, code, sessionKey string) (*api.CallbackData, error) {
	p, ok := s.registry.Get(name)
	if !ok {
		return nil, s.unknownProvider(name)
	}

	result, err := s.flow.Handle(ctx, p, name, code, sessionKey)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login complete",
		"provider", name,
		"account_id", result.Account.ID,
	)
	return &api.CallbackData{
		Token:     result.Credential.Token,
		TokenType: result.Credential.TokenType,
		ExpiresIn: result.Credential.ExpiresIn,
		User: api.UserInfo{
			ID:        result.Account.ID,
			Name:      result.Account.Name,
			Email:     result.Account.Email,
			Avatar:    result.Account.Avatar,
			Provider:  result.Account.Provider,
			CreatedAt: result.Account.CreatedAt,
		},
	}, nil
}

func (s *authService) FieldsSchema() []api.FieldSchema {
	out := make([]api.FieldSchema, 0, len(s.fields))
	for _, f := range s.fields {
		fieldType := f.Type
		if fieldType == "" {
			fieldType = "text"
		}
		out = append(out, api.FieldSchema{
			Name:     f.Name,
			Label:    f.Label,
			Type:     fieldType,
			Required: f.Required,
			Options:  f.Options,
			Default:  f.Default,
		})
	}
	return out
}

// SubmitFields validates submitted values against the configured schema and
// stashes the result. Unknown keys are dropped; missing optional fields get
// their configured default. Validation happens here, at submission time, so
// the user can fix mistakes before being sent to the provider.
func (s *authService) SubmitFields(ctx context.Context, sessionKey string, values map[string]string) error {
	accepted := make(map[string]string, len(s.fields))
	var missing []string
	for _, f := range s.fields {
		val := strings.TrimSpace(values[f.Name])
		if val == "" {
			val = f.Default
		}
		if val == "" {
			if f.Required {
				missing = append(missing, f.Name)
			}
			continue
		}
		if len(f.Options) > 0 {
			if _, ok := f.Options[val]; !ok {
				return biz.NewValidationError(fmt.Sprintf("invalid value for field %q", f.Name))
			}
		}
		accepted[f.Name] = val
	}
	if len(missing) > 0 {
		return biz.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}

	if err := s.pending.Stash(ctx, sessionKey, accepted); err != nil {
		return biz.NewPersistenceError(err)
	}
	return nil
}

func (s *authService) unknownProvider(name string) *biz.FlowError {
	return biz.NewValidationError(fmt.Sprintf("unknown provider %q, configured: %s",
		name, strings.Join(s.registry.Names(), ", ")))
}
