package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/xid"
	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/model"
	"github.com/sakif/text-summarizer/internal/repository"
)

var _ repository.SummaryRepository = (*SummaryDB)(nil)

// maxShareIDAttempts bounds how often Create regenerates a colliding share id.
// A 22-character shortuuid collision is astronomically unlikely; the loop
// exists so that the unique index, not luck, guarantees uniqueness.
const maxShareIDAttempts = 3

const summaryColumns = `id, user_id, text, summary, style, language, share_id, favorite, created_at, updated_at`

// SummaryDB is the summaries-table view of the database.
type SummaryDB struct {
	conn *sql.DB

	// newShareID is swappable so tests can force collisions.
	newShareID func() string
}

// Summaries returns the summary repository backed by db.
func (db *DB) Summaries() *SummaryDB {
	return &SummaryDB{conn: db.conn, newShareID: shortuuid.New}
}

// Create inserts a summary and assigns ID, ShareID and timestamps.
//
// KEY CONCEPTS:
//
//  1. TWO KINDS OF ID:
//     ID is an xid (sortable, internal). ShareID is an opaque shortuuid that
//     goes into public links; it reveals nothing about creation order.
//
//  2. UNIQUENESS IS THE DATABASE'S JOB:
//     The sparse unique index on share_id rejects a duplicate. On that
//     specific failure we draw a new share id and try again.
func (r *SummaryDB) Create(ctx context.Context, s *model.Summary) error {
	now := time.Now().UTC()
	s.ID = xid.New().String()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Style == "" {
		s.Style = model.DefaultStyle
	}
	if s.Language == "" {
		s.Language = model.DefaultLanguage
	}

	var lastErr error
	for attempt := 0; attempt < maxShareIDAttempts; attempt++ {
		s.ShareID = r.newShareID()

		_, err := r.conn.ExecContext(ctx,
			`INSERT INTO summaries (`+summaryColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID,
			s.UserID,
			s.Text,
			s.Summary,
			string(s.Style),
			s.Language,
			nullString(s.ShareID),
			s.Favorite,
			s.CreatedAt,
			s.UpdatedAt,
		)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("sqlite: creating summary: %w", err)
		}
		lastErr = err
	}

	return fmt.Errorf("sqlite: creating summary: no unique share id after %d attempts: %w",
		maxShareIDAttempts, lastErr)
}

// ListByUser returns every summary owned by userID, newest first.
//
// The id tie-breaker keeps the order stable for rows created within the same
// timestamp (xids sort by creation time within a process).
func (r *SummaryDB) ListByUser(ctx context.Context, userID string) ([]model.Summary, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+summaryColumns+`
		 FROM summaries
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing summaries for %s: %w", userID, err)
	}
	defer rows.Close()

	// Never nil: an empty history encodes as [] rather than null.
	summaries := make([]model.Summary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning summary row: %w", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating summaries: %w", err)
	}

	return summaries, nil
}

// Delete removes a summary owned by userID in one statement.
//
// DELETE ... RETURNING both performs the ownership check and hands back the
// deleted row (the service needs its share id to evict the share cache).
// No row means "not yours or not there", and both are NotFound.
func (r *SummaryDB) Delete(ctx context.Context, userID, id string) (*model.Summary, error) {
	row := r.conn.QueryRowContext(ctx,
		`DELETE FROM summaries
		 WHERE id = ? AND user_id = ?
		 RETURNING `+summaryColumns,
		id, userID,
	)

	s, err := scanSummary(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("Summary")
		}
		return nil, fmt.Errorf("sqlite: deleting summary %s: %w", id, err)
	}
	return s, nil
}

// ToggleFavorite flips the favorite flag and returns its new value.
//
// ATOMICITY:
// The read-modify-write happens inside one UPDATE, so two concurrent toggles
// from the same owner are serialised by SQLite and always end up consistent.
func (r *SummaryDB) ToggleFavorite(ctx context.Context, userID, id string) (bool, error) {
	var favorite bool
	err := r.conn.QueryRowContext(ctx,
		`UPDATE summaries
		 SET favorite = NOT favorite, updated_at = ?
		 WHERE id = ? AND user_id = ?
		 RETURNING favorite`,
		time.Now().UTC(), id, userID,
	).Scan(&favorite)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, apperror.NotFound("Summary")
		}
		return false, fmt.Errorf("sqlite: toggling favorite on %s: %w", id, err)
	}
	return favorite, nil
}

// GetByShareID looks a summary up by its public share id.
func (r *SummaryDB) GetByShareID(ctx context.Context, shareID string) (*model.Summary, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE share_id = ?`, shareID)

	s, err := scanSummary(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("Summary")
		}
		return nil, fmt.Errorf("sqlite: getting summary by share id: %w", err)
	}
	return s, nil
}

func scanSummary(row scanner) (*model.Summary, error) {
	var (
		s       model.Summary
		style   string
		shareID sql.NullString
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Text,
		&s.Summary,
		&style,
		&s.Language,
		&shareID,
		&s.Favorite,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Style = model.Style(style)
	s.ShareID = shareID.String
	return &s, nil
}
