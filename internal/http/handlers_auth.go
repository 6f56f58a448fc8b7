package httpx

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gmrl/auth-portal/internal/domain/model"
	"github.com/gmrl/auth-portal/internal/service"
)

// ClientAuthConfig is the slice of provider configuration safe to hand to the
// browser: everything a client needs to build the authorize URL, and nothing
// it must not see. The client secret stays out by construction.
type ClientAuthConfig struct {
	Mode        string   `json:"mode"`
	TenantID    string   `json:"tenant_id"`
	ClientID    string   `json:"client_id"`
	RedirectURL string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
}

// AuthHandlersOptions groups dependencies for AuthHandlers.
type AuthHandlersOptions struct {
	Auth          *service.AuthService
	Logger        *slog.Logger
	ClientConfig  ClientAuthConfig
	SecureCookies bool
	CookieDomain  string
	SessionTTL    time.Duration
}

// AuthHandlers serves the login, callback, logout, and session endpoints.
type AuthHandlers struct {
	auth          *service.AuthService
	logger        *slog.Logger
	clientConfig  ClientAuthConfig
	secureCookies bool
	cookieDomain  string
	sessionTTL    time.Duration
}

// NewAuthHandlers constructs AuthHandlers.
func NewAuthHandlers(opts AuthHandlersOptions) *AuthHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthHandlers{
		auth:          opts.Auth,
		logger:        logger.With("component", "auth_handlers"),
		clientConfig:  opts.ClientConfig,
		secureCookies: opts.SecureCookies,
		cookieDomain:  opts.CookieDomain,
		sessionTTL:    ttl,
	}
}

// loginState is the payload round-tripped through the provider's state
// parameter, base64-encoded JSON. It is a UX courtesy, not a security
// control; anything unparseable on the way back is simply ignored.
type loginState struct {
	ReturnURL string `json:"returnUrl,omitempty"`
}

// Login kicks off the OAuth2 flow, carrying an optional returnUrl through the
// provider round trip.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state := encodeState(loginState{
		ReturnURL: safeReturnPath(r.URL.Query().Get("returnUrl")),
	})
	http.Redirect(w, r, h.auth.BeginLogin(state), http.StatusFound)
}

// Callback completes the flow: provider errors and exchange failures bounce
// back to the login page with a generic marker, success issues the session
// cookie and routes by role.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.WarnContext(r.Context(), "provider returned error",
			"error", providerErr, "description", query.Get("error_description"))
		http.Redirect(w, r, "/auth/login-failed", http.StatusFound)
		return
	}

	result, err := h.auth.CompleteLogin(r.Context(), query.Get("code"))
	if err != nil {
		// The provider detail stays server-side; the browser sees only a
		// generic failure page.
		h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		http.Redirect(w, r, "/auth/login-failed", http.StatusFound)
		return
	}

	h.setSessionCookie(w, result.Session.Token)
	http.Redirect(w, r, h.postLoginRoute(result.User, query.Get("state")), http.StatusFound)
}

// postLoginRoute picks the landing page: an in-app returnUrl from the state
// wins for approved users, everyone else gets their role's default.
func (h *AuthHandlers) postLoginRoute(user *model.User, rawState string) string {
	if user.IsApproved && user.IsActive {
		if st, ok := decodeState(rawState); ok {
			if returnURL := safeReturnPath(st.ReturnURL); returnURL != "" {
				return returnURL
			}
		}
	}
	return h.auth.DefaultRouteForRole(user.Role)
}

// Config exposes the provider settings a browser client needs to start the
// flow itself; the client secret never leaves the server.
func (h *AuthHandlers) Config(w http.ResponseWriter, _ *http.Request) {
	cfg := h.clientConfig
	if cfg.Scopes == nil {
		cfg.Scopes = []string{}
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// Logout destroys the session and clears the cookie. Always succeeds from the
// browser's point of view.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if logoutErr := h.auth.Logout(r.Context(), cookie.Value); logoutErr != nil {
			h.logger.WarnContext(r.Context(), "logout cleanup failed", "error", logoutErr)
		}
	}

	h.clearSessionCookie(w)

	if isAPIRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}

// Session returns the authenticated principal for the SPA shell.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":             principal.UserID,
		"email":               principal.Email,
		"display_name":        principal.DisplayName,
		"photo_url":           principal.PhotoURL,
		"job_title":           principal.JobTitle,
		"department":          principal.Department,
		"role":                principal.Role,
		"assigned_stores":     principal.AssignedStores,
		"assigned_department": principal.AssignedDepartment,
		"is_approved":         principal.IsApproved,
		"default_route":       h.auth.DefaultRouteForRole(principal.Role),
	})
}

// Pending renders the holding page for users awaiting approval.
func (h *AuthHandlers) Pending(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Awaiting Approval</title></head>
<body>
<h1>Account Pending Approval</h1>
<p>Your account has been created and is waiting for an administrator to assign a role.</p>
<p><a href="/auth/logout">Sign out</a></p>
</body>
</html>`))
}

// LoginFailed renders the generic failure page shown after a rejected
// exchange or a provider error.
func (h *AuthHandlers) LoginFailed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Sign-in Failed</title></head>
<body>
<h1>Sign-in Failed</h1>
<p>Something went wrong while signing you in. Please try again.</p>
<p><a href="/auth/login">Try again</a></p>
</body>
</html>`))
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func encodeState(st loginState) string {
	data, err := json.Marshal(st)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func decodeState(raw string) (loginState, bool) {
	if raw == "" {
		return loginState{}, false
	}
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		// Some providers re-encode the state; tolerate standard encoding too.
		data, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return loginState{}, false
		}
	}
	var st loginState
	if unmarshalErr := json.Unmarshal(data, &st); unmarshalErr != nil {
		return loginState{}, false
	}
	return st, true
}
