package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/conf"
)

// SessionCookieName carries the key that ties a pre-redirect field
// submission to the later callback.
const SessionCookieName = "social_auth_session"

// OAuthHandler handles the login endpoints: the browser redirect flow, the
// JSON API flow, and the pre-redirect field collection.
type OAuthHandler struct {
	svc    AuthService
	routes conf.Routes
	logger *slog.Logger
}

func NewOAuthHandler(svc AuthService, routes conf.Routes, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{svc: svc, routes: routes, logger: logger}
}

// RegisterRoutes registers the login routes on the (already prefixed)
// router. Literal paths go first so "fields" is never read as a provider
// name.
func (h *OAuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/fields", h.getFields).Methods(http.MethodGet)
	r.HandleFunc("/fields", h.postFields).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/api/{provider}/url", h.apiAuthURL).Methods(http.MethodGet)
	r.HandleFunc("/api/{provider}/callback", h.apiCallback).Methods(http.MethodPost)
	r.HandleFunc("/{provider}", h.redirect).Methods(http.MethodGet)
	r.HandleFunc("/{provider}/callback", h.callback).Methods(http.MethodGet)
}

// redirect starts the browser flow: issue a one-time state and send the
// user to the provider.
func (h *OAuthHandler) redirect(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	authURL, err := h.svc.InitiateURL(provider)
	if err != nil {
		h.logger.Warn("failed to initiate login", "provider", provider, "error", err)
		h.failRedirect(w, r, publicMessage(err))
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// callback finishes the browser flow. Every outcome is a redirect: the
// post-login target with the token on success, the login surface with a
// human-readable message on failure.
func (h *OAuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("provider returned error", "provider", provider, "error", errParam)
		h.failRedirect(w, r, "authentication was cancelled or refused")
		return
	}
	if !h.svc.ConsumeState(provider, query.Get("state")) {
		h.logger.Warn("invalid state on callback", "provider", provider)
		h.failRedirect(w, r, "invalid or expired login attempt, please try again")
		return
	}

	result, err := h.svc.HandleCallback(r.Context(), provider, query.Get("code"), h.sessionKey(r))
	if err != nil {
		h.logger.Error("callback failed", "provider", provider, "error", err)
		h.failRedirect(w, r, publicMessage(err))
		return
	}

	h.clearSessionCookie(w)
	target := h.routes.RedirectAfterLogin + "?token=" + url.QueryEscape(result.Token)
	http.Redirect(w, r, target, http.StatusFound)
}

// apiAuthURL returns the authorization URL for API clients.
func (h *OAuthHandler) apiAuthURL(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	authURL, err := h.svc.AuthorizeURL(provider)
	if err != nil {
		h.writeFlowError(w, provider, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Authorization URL generated", AuthURLData{URL: authURL, Provider: provider})
}

// apiCallback finishes the JSON flow: the client exchanged the redirect
// itself and posts the code.
func (h *OAuthHandler) apiCallback(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	var req CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body", nil)
		return
	}

	result, err := h.svc.HandleCallback(r.Context(), provider, req.Code, h.sessionKey(r))
	if err != nil {
		h.writeFlowError(w, provider, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Authentication successful", result)
}

// getFields returns the configured pre-redirect field schema.
func (h *OAuthHandler) getFields(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Required fields", FieldsData{Fields: h.svc.FieldsSchema()})
}

// postFields validates and stashes field values for the upcoming callback,
// creating the session cookie if the browser has none yet.
func (h *OAuthHandler) postFields(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body", nil)
		return
	}

	key := h.sessionKey(r)
	if key == "" {
		key = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    key,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if err := h.svc.SubmitFields(r.Context(), key, values); err != nil {
		h.writeFlowError(w, "", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Fields saved", nil)
}

// logout clears the session cookie.
func (h *OAuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeSuccess(w, http.StatusOK, "Logged out", nil)
}

// sessionKey reads the session key from the cookie, falling back to the
// header API clients use.
func (h *OAuthHandler) sessionKey(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("X-Session-Key")
}

func (h *OAuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (h *OAuthHandler) failRedirect(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.routes.LoginURL+"?error="+url.QueryEscape(message), http.StatusFound)
}

// writeFlowError maps a flow error onto the envelope. Internal detail goes
// to the log, never to the response.
func (h *OAuthHandler) writeFlowError(w http.ResponseWriter, provider string, err error) {
	if fe, ok := biz.AsFlowError(err); ok {
		if fe.Kind != biz.KindValidation {
			h.logger.Error("login failed", "provider", provider, "kind", string(fe.Kind), "error", err)
		}
		writeError(w, fe.Kind.HTTPStatus(), fe.Message, map[string]string{"kind": string(fe.Kind)})
		return
	}
	h.logger.Error("login failed", "provider", provider, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error", nil)
}

// publicMessage extracts the caller-safe message from an error for the
// browser redirect.
func publicMessage(err error) string {
	if fe, ok := biz.AsFlowError(err); ok {
		return fe.Message
	}
	return "login failed"
}
