package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue accepts any key. A package-private type means no other
// package can create a colliding key, so only auth can read or write the
// user ID stored here.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth is the Auth Gate for protected routes.
//
// CREDENTIAL LOOKUP ORDER:
//  1. the "token" cookie (browsers)
//  2. "Authorization: Bearer <token>" (scripts, mobile clients)
//
// No credential at all → 401 {"error":"Unauthorized"}.
// A credential that fails verification for any reason → 401 {"error":"Invalid token"}.
// Otherwise the user ID is stored in the request context for the handler.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := credentialFromRequest(r)
			if raw == "" {
				writeUnauthorized(w, "Unauthorized")
				return
			}

			userID, err := tokens.Verify(raw)
			if err != nil {
				writeUnauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth attaches the user identity when a valid credential is
// present, and lets the request through untouched otherwise.
//
// It runs globally so that middleware further down (the rate limiter keys
// on the user) can see who is calling even on routes that RequireAuth
// does not guard.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := credentialFromRequest(r); raw != "" {
				if userID, err := tokens.Verify(raw); err == nil {
					r = r.WithContext(WithUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if no valid credential was presented.
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// credentialFromRequest returns the raw token from the cookie or, failing
// that, from a Bearer Authorization header. "" means no credential.
func credentialFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// =========================================================================
// SESSION COOKIE
// =========================================================================

// SetSessionCookie stores token in the session cookie.
//
// COOKIE ATTRIBUTES:
//   - HttpOnly: page JavaScript cannot read the token (XSS can't steal it)
//   - SameSite=None + Secure: the SPA is served from a different origin, so
//     the cookie must be sent on cross-site requests; browsers only allow
//     that over HTTPS. secure=false exists for plain-HTTP local setups.
//   - Max-Age matches the token lifetime.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, sessionCookie(token, int(SessionDuration/time.Second), secure))
}

// ClearSessionCookie expires the session cookie with the same attributes it
// was set with; browsers ignore a clear whose attributes differ.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, sessionCookie("", -1, secure))
}

func sessionCookie(value string, maxAge int, secure bool) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if !secure {
		// Browsers reject SameSite=None without Secure.
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}
