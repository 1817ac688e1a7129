// Package repository declares the persistence contracts used by the service layer.
//
// The service layer only ever sees these interfaces; repository/sqlite provides
// the production implementation and the service tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/text-summarizer/internal/model"
)

// UserRepository stores user accounts.
//
// Lookups by email are case-insensitive. Create returns an apperror.ErrConflict
// error when the email (or Google subject) is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

// SummaryRepository stores summaries. Every mutating call is scoped to the
// owning user: a summary that exists but belongs to someone else is reported
// as apperror.ErrNotFound, exactly like a missing one.
type SummaryRepository interface {
	// Create persists the summary and assigns ID, ShareID and timestamps.
	Create(ctx context.Context, summary *model.Summary) error
	// ListByUser returns the owner's summaries, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Summary, error)
	// Delete removes the summary and returns the deleted record.
	Delete(ctx context.Context, userID, id string) (*model.Summary, error)
	// ToggleFavorite flips the favorite flag atomically and returns the new value.
	ToggleFavorite(ctx context.Context, userID, id string) (bool, error)
	// GetByShareID is the only lookup that is not owner-scoped.
	GetByShareID(ctx context.Context, shareID string) (*model.Summary, error)
}
