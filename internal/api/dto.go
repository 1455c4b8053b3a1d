package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// AuthURLData is the payload of the authorization-URL endpoint.
type AuthURLData struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// CallbackRequest is the JSON body of the API callback endpoint.
type CallbackRequest struct {
	Code string `json:"code"`
}

// UserInfo is the public-safe account projection returned on login.
type UserInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Provider  string    `json:"oauth_provider"`
	CreatedAt time.Time `json:"created_at"`
}

// CallbackData is the payload of a successful callback.
type CallbackData struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type"`
	ExpiresIn *int64   `json:"expires_in,omitempty"`
	User      UserInfo `json:"user"`
}

// FieldSchema describes one extra field the client must collect before the
// provider redirect.
type FieldSchema struct {
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Type     string            `json:"type"`
	Required bool              `json:"required"`
	Options  map[string]string `json:"options,omitempty"`
	Default  string            `json:"default,omitempty"`
}

// FieldsData is the payload of the fields-introspection endpoint.
type FieldsData struct {
	Fields []FieldSchema `json:"fields"`
}

// AuthService is the service interface the handlers depend on (implemented
// by the service layer).
type AuthService interface {
	// AuthorizeURL returns a stateless authorization URL for API clients
	// that carry their own CSRF state.
	AuthorizeURL(provider string) (string, error)
	// InitiateURL returns an authorization URL with a one-time server-side
	// state for the browser flow.
	InitiateURL(provider string) (string, error)
	// ConsumeState validates and invalidates a browser-flow state value.
	ConsumeState(provider, state string) bool
	// HandleCallback runs the full callback flow for one provider.
	HandleCallback(ctx context.Context, provider, code, sessionKey string) (*CallbackData, error)
	// FieldsSchema returns the configured pre-redirect field schema.
	FieldsSchema() []FieldSchema
	// SubmitFields validates and stashes pre-redirect field values under
	// the session key.
	SubmitFields(ctx context.Context, sessionKey string, values map[string]string) error
}

// Envelope is the uniform JSON response shape of the API endpoints.
type Envelope struct {
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  any    `json:"errors"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{
		Status:  "success",
		Success: true,
		Code:    status,
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string, errs any) {
	writeJSON(w, status, Envelope{
		Status:  "error",
		Success: false,
		Code:    status,
		Message: message,
		Errors:  errs,
	})
}
