package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" creates a fresh database that lives only as long as the test.
// Each test gets its own, so tests never see each other's rows.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a password user and fails the test if it errors.
func createTestUser(t *testing.T, r *UserDB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$04$fakehashfakehashfakehashfakehashfakehashfakehash",
	}
	if err := r.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	users := newTestDB(t).Users()

	user := &model.User{
		Name:         "Ada",
		Email:        "  Ada@Example.COM ",
		PasswordHash: "hash",
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
	if user.Email != "ada@example.com" {
		t.Errorf("Email = %q, want it trimmed and lowercased", user.Email)
	}
}

func TestUserCreate_DuplicateEmailIgnoresCase(t *testing.T) {
	users := newTestDB(t).Users()
	createTestUser(t, users, "First", "dup@example.com")

	err := users.Create(context.Background(), &model.User{
		Name:         "Second",
		Email:        "DUP@example.com",
		PasswordHash: "hash",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	assertConflictMessage(t, err, "Email already in use")
}

func TestUserCreate_DuplicateGoogleID(t *testing.T) {
	users := newTestDB(t).Users()
	ctx := context.Background()

	if err := users.Create(ctx, &model.User{Name: "A", Email: "a@example.com", GoogleID: "g-1"}); err != nil {
		t.Fatalf("Create() first: %v", err)
	}
	err := users.Create(ctx, &model.User{Name: "B", Email: "b@example.com", GoogleID: "g-1"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	assertConflictMessage(t, err, "Google account already linked to another user")
}

func assertConflictMessage(t *testing.T, err error, want string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an *apperror.AppError", err)
	}
	if appErr.Message != want {
		t.Errorf("Message = %q, want %q", appErr.Message, want)
	}
}

func TestUserCreate_ManyUsersWithoutGoogleID(t *testing.T) {
	// google_id is NULL for password users; the sparse index must allow many.
	users := newTestDB(t).Users()
	createTestUser(t, users, "A", "a@example.com")
	createTestUser(t, users, "B", "b@example.com")
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	users := newTestDB(t).Users()
	created := createTestUser(t, users, "Grace", "grace@example.com")

	found, err := users.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "Grace" || found.Email != "grace@example.com" {
		t.Errorf("GetByID() = %+v", found)
	}
	if found.PasswordHash != created.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", found.PasswordHash, created.PasswordHash)
	}
	if found.GoogleID != "" {
		t.Errorf("GoogleID = %q, want empty for NULL column", found.GoogleID)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	users := newTestDB(t).Users()

	_, err := users.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail_CaseInsensitive(t *testing.T) {
	users := newTestDB(t).Users()
	created := createTestUser(t, users, "Linus", "linus@example.com")

	found, err := users.GetByEmail(context.Background(), "LINUS@Example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestUserGetByEmail_NotFound(t *testing.T) {
	users := newTestDB(t).Users()

	_, err := users.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUserUpdate_BackfillsGoogleProfile(t *testing.T) {
	users := newTestDB(t).Users()
	ctx := context.Background()
	user := createTestUser(t, users, "Ken", "ken@example.com")
	originalCreatedAt := user.CreatedAt

	user.GoogleID = "google-sub-42"
	user.Avatar = "https://lh3.googleusercontent.com/a/ken"
	if err := users.Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() after Update: %v", err)
	}
	if found.GoogleID != "google-sub-42" {
		t.Errorf("GoogleID = %q, want %q", found.GoogleID, "google-sub-42")
	}
	if found.Avatar != "https://lh3.googleusercontent.com/a/ken" {
		t.Errorf("Avatar = %q", found.Avatar)
	}
	if found.PasswordHash == "" {
		t.Error("Update() must keep the existing password hash")
	}
	if !found.CreatedAt.Equal(originalCreatedAt) {
		t.Errorf("Update() changed CreatedAt: got %v, want %v", found.CreatedAt, originalCreatedAt)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	users := newTestDB(t).Users()

	err := users.Update(context.Background(), &model.User{ID: "missing", Name: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}
