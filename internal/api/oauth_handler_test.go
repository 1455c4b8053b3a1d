package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

// stubService is a canned api.AuthService for handler tests.
type stubService struct {
	authURL      string
	callbackData *CallbackData
	callbackErr  error
	submitErr    error
	consumeOK    bool

	gotProvider   string
	gotCode       string
	gotSessionKey string
	gotValues     map[string]string
}

func (s *stubService) AuthorizeURL(provider string) (string, error) {
	if s.authURL == "" {
		return "", biz.NewValidationError("unknown provider " + provider)
	}
	return s.authURL, nil
}

func (s *stubService) InitiateURL(provider string) (string, error) {
	return s.AuthorizeURL(provider)
}

func (s *stubService) ConsumeState(provider, state string) bool { return s.consumeOK }

func (s *stubService) HandleCallback(ctx context.Context, provider, code, sessionKey string) (*CallbackData, error) {
	s.gotProvider, s.gotCode, s.gotSessionKey = provider, code, sessionKey
	if s.callbackErr != nil {
		return nil, s.callbackErr
	}
	return s.callbackData, nil
}

func (s *stubService) FieldsSchema() []FieldSchema {
	return []FieldSchema{{Name: "role", Label: "Role", Type: "select", Required: true}}
}

func (s *stubService) SubmitFields(ctx context.Context, sessionKey string, values map[string]string) error {
	s.gotSessionKey, s.gotValues = sessionKey, values
	return s.submitErr
}

func newTestRouter(svc *stubService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewOAuthHandler(svc, conf.Routes{
		Prefix:             "/social-auth",
		RedirectAfterLogin: "/dashboard",
		LoginURL:           "/login",
	}, logger)
	return NewRouter(h, "/social-auth", logger)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v\n%s", err, rec.Body.String())
	}
	return env
}

func TestAPIAuthURL(t *testing.T) {
	svc := &stubService{authURL: "https://accounts.google.com/o/oauth2/auth?state=x"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/social-auth/api/google/url", nil)

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Status != "success" {
		t.Errorf("envelope = %+v", env)
	}
	data := env.Data.(map[string]any)
	if data["provider"] != "google" || data["url"] != svc.authURL {
		t.Errorf("data = %v", data)
	}
}

func TestAPICallbackSuccessEnvelope(t *testing.T) {
	svc := &stubService{callbackData: &CallbackData{
		Token:     "tok-1",
		TokenType: "Bearer",
		User: UserInfo{
			ID: "acct-1", Name: "Jane Q Public", Email: "jane@example.com",
			Provider: "google", CreatedAt: time.Now(),
		},
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/social-auth/api/google/callback",
		strings.NewReader(`{"code":"code-1"}`))
	req.Header.Set("X-Session-Key", "sess-1")

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotCode != "code-1" || svc.gotProvider != "google" || svc.gotSessionKey != "sess-1" {
		t.Errorf("service called with %q %q %q", svc.gotProvider, svc.gotCode, svc.gotSessionKey)
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	if data["token"] != "tok-1" {
		t.Errorf("token = %v", data["token"])
	}
	user := data["user"].(map[string]any)
	if user["oauth_provider"] != "google" {
		t.Errorf("user = %v", user)
	}
	if _, ok := user["password"]; ok {
		t.Error("password leaked into response")
	}
}

func TestAPICallbackErrorEnvelope(t *testing.T) {
	svc := &stubService{callbackErr: biz.NewExchangeError(nil)}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/social-auth/api/google/callback",
		strings.NewReader(`{"code":"bad"}`))

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Status != "error" {
		t.Errorf("envelope = %+v", env)
	}
	errs := env.Errors.(map[string]any)
	if errs["kind"] != string(biz.KindExchange) {
		t.Errorf("errors = %v", errs)
	}
}

func TestWebCallbackRejectsBadState(t *testing.T) {
	svc := &stubService{consumeOK: false}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/social-auth/google/callback?code=c&state=forged", nil)

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, _ := url.Parse(rec.Header().Get("Location"))
	if loc.Path != "/login" || loc.Query().Get("error") == "" {
		t.Errorf("location = %s", rec.Header().Get("Location"))
	}
	if svc.gotCode != "" {
		t.Error("flow ran despite invalid state")
	}
}

func TestWebCallbackSuccessRedirectsWithToken(t *testing.T) {
	svc := &stubService{
		consumeOK:    true,
		callbackData: &CallbackData{Token: "tok-1", TokenType: "Bearer"},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/social-auth/google/callback?code=c&state=ok", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-9"})

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, _ := url.Parse(rec.Header().Get("Location"))
	if loc.Path != "/dashboard" || loc.Query().Get("token") != "tok-1" {
		t.Errorf("location = %s", rec.Header().Get("Location"))
	}
	if svc.gotSessionKey != "sess-9" {
		t.Errorf("session key = %q", svc.gotSessionKey)
	}
}

func TestGetFieldsSchema(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/social-auth/fields", nil)

	newTestRouter(&stubService{}).ServeHTTP(rec, req)

	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	fields := data["fields"].([]any)
	if len(fields) != 1 {
		t.Fatalf("fields = %v", fields)
	}
	field := fields[0].(map[string]any)
	if field["name"] != "role" || field["required"] != true {
		t.Errorf("field = %v", field)
	}
}

func TestPostFieldsCreatesSessionCookie(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/social-auth/fields",
		strings.NewReader(`{"role":"manager"}`))

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == SessionCookieName && c.Value != "" {
			found = true
			if c.Value != svc.gotSessionKey {
				t.Errorf("cookie %q != stash key %q", c.Value, svc.gotSessionKey)
			}
		}
	}
	if !found {
		t.Error("no session cookie set")
	}
	if svc.gotValues["role"] != "manager" {
		t.Errorf("values = %v", svc.gotValues)
	}
}

func TestPostFieldsValidationError(t *testing.T) {
	svc := &stubService{submitErr: biz.NewValidationError("missing required fields: role")}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/social-auth/fields", strings.NewReader(`{}`))

	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success || !strings.Contains(env.Message, "role") {
		t.Errorf("envelope = %+v", env)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/social-auth/logout", nil)

	newTestRouter(&stubService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie not cleared")
	}
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	newTestRouter(&stubService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Status != "healthy" {
		t.Errorf("body = %s", rec.Body.String())
	}
}
