// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses, sets cookies
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests swap in
// in-memory fakes (see auth_test.go and summary_test.go). Services return
// *apperror.AppError values; the handler turns them into status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/auth"
	"github.com/sakif/text-summarizer/internal/model"
	"github.com/sakif/text-summarizer/internal/repository"
)

// IdentityVerifier checks an external ID token and returns who it belongs to.
// *auth.GoogleVerifier is the production implementation.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*auth.GoogleIdentity, error)
}

var _ IdentityVerifier = (*auth.GoogleVerifier)(nil)

// AuthService handles registration, login and session lookups.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write user records
//   - tokens     *auth.TokenService        → issue session JWTs
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - google     IdentityVerifier          → Google ID-token verification
//   - logger     *slog.Logger              → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	google    IdentityVerifier
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	google IdentityVerifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		google:    google,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs it in.
//
// RULES:
//   - name, email and password are all required (after trimming name/email)
//   - the email is unique regardless of case; a taken email is a Conflict
//   - bcrypt only looks at the first 72 bytes, so longer passwords are refused
//     instead of being silently truncated
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Missing fields")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes))
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks an email/password pair.
//
// WHY ONE ERROR FOR EVERYTHING?
// Unknown email, Google-only account (no password hash) and wrong password
// all return the same InvalidCredentials, so the response never reveals
// which emails have accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.InvalidCredentials()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			// A corrupt stored hash: log it, but answer like a wrong password.
			s.logger.Error("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.InvalidCredentials()
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// GoogleLogin signs in with a Google ID token, creating the account on first
// use.
//
// ACCOUNT LINKING:
// Accounts are keyed by email. If a password account already exists for the
// token's email, the Google ID and avatar are backfilled onto it (only when
// missing, and only written back if something actually changed).
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, apperror.ValidationFailed("id_token", "Missing Google token")
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("google token rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("Google authentication failed", err)
	}

	user, err := s.users.GetByEmail(ctx, identity.Email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.createGoogleUser(ctx, identity)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	default:
		if err := s.linkGoogle(ctx, user, identity); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
	return s.issue(user)
}

func (s *AuthService) createGoogleUser(ctx context.Context, identity *auth.GoogleIdentity) (*model.User, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(identity.Email, "@")
	}

	user := &model.User{
		Name:     name,
		Email:    identity.Email,
		GoogleID: identity.Subject,
		Avatar:   identity.Picture,
	}
	err := s.users.Create(ctx, user)
	if err == nil {
		return user, nil
	}

	// Two first sign-ins racing for the same email: the loser reads the
	// winner's row.
	if errors.Is(err, apperror.ErrConflict) {
		existing, getErr := s.users.GetByEmail(ctx, identity.Email)
		if getErr == nil {
			return existing, s.linkGoogle(ctx, existing, identity)
		}
	}
	return nil, fmt.Errorf("service/auth: creating google user: %w", err)
}

func (s *AuthService) linkGoogle(ctx context.Context, user *model.User, identity *auth.GoogleIdentity) error {
	changed := false
	if user.GoogleID == "" && identity.Subject != "" {
		user.GoogleID = identity.Subject
		changed = true
	}
	if user.Avatar == "" && identity.Picture != "" {
		user.Avatar = identity.Picture
		changed = true
	}
	if !changed {
		return nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return err
		}
		return fmt.Errorf("service/auth: linking google account: %w", err)
	}
	return nil
}

// Me returns the account behind a verified session.
// A token can outlive its user; that case is a plain 404.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "Not found"}
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
