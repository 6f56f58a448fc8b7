package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/gmrl/auth-portal/internal/domain/auth"
)

// SessionResolver is the slice of the auth service the gates need.
type SessionResolver interface {
	GetSession(ctx context.Context, token string) (*domainauth.Principal, error)
}

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "auth_token"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID returns a middleware that tags each request with a UUID, echoed
// in the X-Request-Id response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth gates a route on a valid session. API requests get a 401 JSON
// body; page requests are redirected to the login flow carrying the original
// URL so the user lands back where they were headed.
func RequireAuth(auth SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolvePrincipal(r, auth)
			if err != nil {
				// A storage outage is not "no session": answering 401 here
				// would bounce every signed-in user to the login page.
				if isAPIRequest(r) {
					WriteError(w, ErrorParams{
						Code:    http.StatusInternalServerError,
						ErrCode: "session_unavailable",
						Err:     errors.New("session lookup failed"),
					})
					return
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if principal == nil {
				if isAPIRequest(r) {
					WriteError(w, ErrorParams{
						Code:    http.StatusUnauthorized,
						ErrCode: "authentication_required",
						Err:     errors.New("authentication required"),
					})
					return
				}
				redirectToLogin(w, r)
				return
			}

			ctx := SetPrincipalInContext(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route on an allow-list of roles. Membership is exact;
// there is no role hierarchy, so Admin passes only where Admin is listed.
// The gate runs after RequireAuth: finding no principal on the context is a
// wiring mistake and fails closed as a 500, never an open door.
func RequireRole(allowed ...domainauth.Role) func(http.Handler) http.Handler {
	allowedSet := make(map[domainauth.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				WriteError(w, ErrorParams{
					Code:    http.StatusInternalServerError,
					ErrCode: "authorization_misconfigured",
					Err:     errors.New("authorization gate reached without authentication"),
				})
				return
			}

			if _, ok := allowedSet[principal.Role]; !ok {
				if isAPIRequest(r) {
					WriteError(w, ErrorParams{
						Code:    http.StatusForbidden,
						ErrCode: "insufficient_permissions",
						Err: fmt.Errorf("role %s is not permitted here (requires one of: %s)",
							principal.Role, joinRoles(allowed)),
					})
					return
				}
				showAccessDenied(w, principal)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolvePrincipal reads the session cookie and resolves it to a principal.
// A missing cookie or an unknown/expired token yields (nil, nil); a non-nil
// error means storage could not answer and must not read as unauthenticated.
func resolvePrincipal(r *http.Request, auth SessionResolver) (*domainauth.Principal, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}
	return auth.GetSession(r.Context(), cookie.Value)
}

// isAPIRequest reports whether the route expects a JSON error rather than a
// browser redirect.
func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// redirectToLogin sends the browser into the login flow with the original URL
// as returnUrl.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	returnURL := safeReturnPath(r.URL.RequestURI())
	if returnURL == "" {
		returnURL = "/"
	}
	http.Redirect(w, r,
		"/auth/login?returnUrl="+url.QueryEscape(returnURL),
		http.StatusFound)
}

// safeReturnPath keeps post-login redirects inside the application: only
// relative paths survive, everything else collapses to empty.
func safeReturnPath(raw string) string {
	// Browsers treat both "//" and "/\" as scheme-relative.
	if raw == "" || !strings.HasPrefix(raw, "/") ||
		strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return raw
}

func showAccessDenied(w http.ResponseWriter, principal *domainauth.Principal) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Access Denied</title></head>
<body>
<h1>Access Denied</h1>
<p>Your account (` + htmlEscape(principal.Email) + `) does not have permission to view this page.</p>
<p><a href="/dashboard">Back to dashboard</a> &middot; <a href="/auth/logout">Sign out</a></p>
</body>
</html>`))
}

func joinRoles(roles []domainauth.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// htmlEscape escapes the handful of principal fields rendered inline.
func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
