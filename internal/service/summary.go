package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/cache"
	"github.com/sakif/text-summarizer/internal/extract"
	"github.com/sakif/text-summarizer/internal/model"
	"github.com/sakif/text-summarizer/internal/repository"
)

// MaxLanguageLength bounds the free-form language field, in characters.
const MaxLanguageLength = 40

// Extractor turns an uploaded document into plain text.
type Extractor interface {
	Extract(ctx context.Context, f extract.File) (string, error)
}

// Summarizer produces a summary through the AI provider.
type Summarizer interface {
	Summarize(ctx context.Context, text string, style model.Style, language string) (string, error)
}

var _ Extractor = (*extract.Registry)(nil)

// SummarizeInput is everything a client may send to POST /api/summary.
// File is nil when nothing was uploaded.
type SummarizeInput struct {
	Text     string
	File     *extract.File
	Style    string
	Language string
}

// SummaryService runs the summarization pipeline and manages a user's history.
//
// PIPELINE (Summarize):
//
//	validate style/language → extract file → compose payload → summarize → persist
//
// Nothing is persisted unless the provider returned a summary.
//
// SHARE CACHE:
// Public share links are read far more than they are written, so GetShared
// goes through cache.Cache (cache-aside). The cache is best-effort: a failed
// read or write is logged and the database answers instead.
type SummaryService struct {
	summaries  repository.SummaryRepository
	extractor  Extractor
	summarizer Summarizer
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewSummaryService wires the service. A nil cache is replaced by cache.Nop.
func NewSummaryService(
	summaries repository.SummaryRepository,
	extractor Extractor,
	summarizer Summarizer,
	c cache.Cache,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *SummaryService {
	if c == nil {
		c = cache.Nop{}
	}
	return &SummaryService{
		summaries:  summaries,
		extractor:  extractor,
		summarizer: summarizer,
		cache:      c,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Summarize extracts, summarizes and stores one request for userID.
func (s *SummaryService) Summarize(ctx context.Context, userID string, in SummarizeInput) (*model.Summary, error) {
	style, ok := model.ParseStyle(in.Style)
	if !ok {
		names := make([]string, len(model.Styles))
		for i, st := range model.Styles {
			names[i] = string(st)
		}
		return nil, apperror.ValidationFailed("style",
			fmt.Sprintf("Style must be one of: %s", strings.Join(names, ", ")))
	}

	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = model.DefaultLanguage
	}
	if utf8.RuneCountInString(language) > MaxLanguageLength {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("Language must be %d characters or less", MaxLanguageLength))
	}

	var docText string
	if in.File != nil {
		text, err := s.extractor.Extract(ctx, *in.File)
		if err != nil {
			return nil, err
		}
		docText = text
	}

	payload := ComposePayload(in.Text, docText)
	if strings.TrimSpace(payload) == "" {
		return nil, apperror.ValidationFailed("text", "Please provide text or upload a document")
	}

	summaryText, err := s.summarizer.Summarize(ctx, payload, style, language)
	if err != nil {
		return nil, err
	}

	summary := &model.Summary{
		UserID:   userID,
		Text:     payload,
		Summary:  summaryText,
		Style:    style,
		Language: language,
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		return nil, fmt.Errorf("service/summary: saving summary: %w", err)
	}

	s.logger.Info("summary created",
		slog.String("userID", userID),
		slog.String("summaryID", summary.ID),
		slog.String("style", string(style)),
		slog.Bool("document", in.File != nil),
	)
	return summary, nil
}

// List returns the user's history, newest first. Never nil.
func (s *SummaryService) List(ctx context.Context, userID string) ([]model.Summary, error) {
	list, err := s.summaries.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/summary: listing history: %w", err)
	}
	if list == nil {
		list = []model.Summary{}
	}
	return list, nil
}

// Delete removes one of the user's summaries and evicts its share link from
// the cache. Someone else's summary is reported as not found.
func (s *SummaryService) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.summaries.Delete(ctx, userID, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/summary: deleting %s: %w", id, err)
	}

	if deleted.ShareID != "" {
		if err := s.cache.Del(ctx, shareKey(deleted.ShareID)); err != nil {
			s.logger.Warn("share cache eviction failed",
				slog.String("shareID", deleted.ShareID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("summary deleted", slog.String("userID", userID), slog.String("summaryID", id))
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *SummaryService) ToggleFavorite(ctx context.Context, userID, id string) (bool, error) {
	fav, err := s.summaries.ToggleFavorite(ctx, userID, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("service/summary: toggling favorite on %s: %w", id, err)
	}
	return fav, nil
}

// GetShared returns the public projection for a share link.
func (s *SummaryService) GetShared(ctx context.Context, shareID string) (*model.SharedSummary, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return nil, apperror.NotFound("Summary")
	}
	key := shareKey(shareID)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("share cache read failed", slog.String("shareID", shareID), slog.String("error", err.Error()))
	} else if ok {
		var shared model.SharedSummary
		if err := json.Unmarshal(raw, &shared); err == nil {
			return &shared, nil
		}
		s.logger.Warn("share cache entry corrupt", slog.String("shareID", shareID))
	}

	summary, err := s.summaries.GetByShareID(ctx, shareID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/summary: loading share %s: %w", shareID, err)
	}
	shared := summary.Shared()

	raw, err := json.Marshal(shared)
	if err != nil {
		return &shared, nil
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn("share cache write failed", slog.String("shareID", shareID), slog.String("error", err.Error()))
		return &shared, nil
	}

	// Delete removes the row before evicting. A delete that ran between our
	// read and the Set above is visible now, so drop what we just wrote.
	if _, err := s.summaries.GetByShareID(ctx, shareID); err != nil {
		if delErr := s.cache.Del(ctx, key); delErr != nil {
			s.logger.Warn("share cache eviction failed", slog.String("shareID", shareID), slog.String("error", delErr.Error()))
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/summary: rechecking share %s: %w", shareID, err)
	}
	return &shared, nil
}

func shareKey(shareID string) string {
	return "share:" + shareID
}
