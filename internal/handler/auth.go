package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/sakif/text-summarizer/internal/auth"
	"github.com/sakif/text-summarizer/internal/model"
	"github.com/sakif/text-summarizer/internal/service"
)

const stateCookieName = "oauth_state"

// AuthService is the part of service.AuthService the handler needs.
// Tests substitute a mock.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*service.AuthResult, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

// OAuthFlow is the server-side Google redirect flow (*auth.GoogleOAuth).
type OAuthFlow interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (idToken string, err error)
}

var (
	_ AuthService = (*service.AuthService)(nil)
	_ OAuthFlow   = (*auth.GoogleOAuth)(nil)
)

// AuthHandler serves the /auth routes.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin / HandleGoogle → sign in, set the session cookie
//   - HandleMe      → return the signed-in user
//   - HandleLogout  → clear the session cookie
//   - HandleGoogleLogin / HandleGoogleCallback → server-side OAuth redirect flow
//
// The session itself is the JWT in the "token" cookie; see auth.SetSessionCookie.
type AuthHandler struct {
	auth         AuthService
	oauth        OAuthFlow // nil when the redirect flow is not configured
	secureCookie bool
	clientURL    string
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. oauth may be nil.
func NewAuthHandler(svc AuthService, oauth OAuthFlow, secureCookie bool, clientURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         svc,
		oauth:        oauth,
		secureCookie: secureCookie,
		clientURL:    clientURL,
		logger:       logger,
	}
}

// UserResponse wraps the public user view: {"user": {...}}.
type UserResponse struct {
	User model.PublicUser `json:"user"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// googleRequest accepts both names the Google Identity Services button uses.
type googleRequest struct {
	IDToken    string `json:"id_token"`
	Credential string `json:"credential"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
// Body: {"name": "...", "email": "...", "password": "..."}
// 201:  {"user": {...}} and the session cookie
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.secureCookie)
	writeJSON(w, http.StatusCreated, UserResponse{User: result.User.Public()})
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login
// 200:  {"user": {...}} and the session cookie
// 400:  {"error": "Invalid credentials"} for every kind of bad login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.secureCookie)
	writeJSON(w, http.StatusOK, UserResponse{User: result.User.Public()})
}

// HandleGoogle signs in with a Google ID token obtained by the browser.
//
// HTTP: POST /auth/google
// Body: {"id_token": "..."} or {"credential": "..."}
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token := req.IDToken
	if token == "" {
		token = req.Credential
	}

	result, err := h.auth.GoogleLogin(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.secureCookie)
	writeJSON(w, http.StatusOK, UserResponse{User: result.User.Public()})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: user.Public()})
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless JWTs, so "logout" means deleting the cookie. The
// cookie must be cleared with the same attributes it was set with, or the
// browser keeps the original.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and sent to
// Google; HandleGoogleCallback only proceeds if both come back equal.
// The state is 32 bytes from crypto/rand, base64url encoded.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := oauth2.GenerateVerifier()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the redirect flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for Google's id_token
//  3. Run the same sign-in as POST /auth/google
//  4. Set the session cookie and redirect to the web client
//
// Failures after the state check redirect to the client with ?auth=<reason>
// so the UI can show a message instead of a bare error page.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: invalid OAuth state")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid OAuth state"})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		h.redirectToClient(w, r, "denied")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Missing OAuth code"})
		return
	}

	idToken, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: code exchange failed", slog.String("error", err.Error()))
		h.redirectToClient(w, r, "failed")
		return
	}

	result, err := h.auth.GoogleLogin(r.Context(), idToken)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
		h.redirectToClient(w, r, "failed")
		return
	}

	auth.SetSessionCookie(w, result.Token, h.secureCookie)
	h.redirectToClient(w, r, "")
}

func (h *AuthHandler) redirectToClient(w http.ResponseWriter, r *http.Request, outcome string) {
	target := h.clientURL
	if outcome != "" {
		if u, err := url.Parse(h.clientURL); err == nil {
			q := u.Query()
			q.Set("auth", outcome)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
