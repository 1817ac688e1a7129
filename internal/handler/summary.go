package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/auth"
	"github.com/sakif/text-summarizer/internal/extract"
	"github.com/sakif/text-summarizer/internal/model"
	"github.com/sakif/text-summarizer/internal/service"
)

// multipartMemory is how much of a multipart body is kept in memory before
// ParseMultipartForm spills file parts to disk.
const multipartMemory = 8 << 20

// SummaryService is the part of service.SummaryService the handlers need.
type SummaryService interface {
	Summarize(ctx context.Context, userID string, in service.SummarizeInput) (*model.Summary, error)
	List(ctx context.Context, userID string) ([]model.Summary, error)
	Delete(ctx context.Context, userID, id string) error
	ToggleFavorite(ctx context.Context, userID, id string) (bool, error)
	GetShared(ctx context.Context, shareID string) (*model.SharedSummary, error)
}

var _ SummaryService = (*service.SummaryService)(nil)

// SummaryHandler serves summarization, history and share links.
type SummaryHandler struct {
	summaries      SummaryService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewSummaryHandler creates a SummaryHandler. maxUploadBytes bounds the whole
// request body of POST /api/summary.
func NewSummaryHandler(svc SummaryService, maxUploadBytes int64, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{
		summaries:      svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// SummarizeResponse is the 201 body of POST /api/summary.
type SummarizeResponse struct {
	Message string         `json:"message"`
	Summary *model.Summary `json:"summary"`
}

// FavoriteResponse is the body of PATCH /api/history/{id}/favorite.
type FavoriteResponse struct {
	ID       string `json:"_id"`
	Favorite bool   `json:"favorite"`
}

type summarizeJSON struct {
	Text     string `json:"text"`
	Style    string `json:"style"`
	Language string `json:"language"`
}

// HandleSummarize runs the summarization pipeline.
//
// HTTP: POST /api/summary
// Auth: Required
//
// ACCEPTED BODIES:
//   - multipart/form-data with fields text, style, language and an optional
//     file part named "file" (PDF, DOCX, HTML, plain text, Markdown)
//   - application/json {"text": "...", "style": "...", "language": "..."}
//
// The body is capped with http.MaxBytesReader; going over the cap is a 413.
func (h *SummaryHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	in, err := h.parseSummarizeInput(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.summaries.Summarize(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SummarizeResponse{Message: "ok", Summary: summary})
}

func (h *SummaryHandler) parseSummarizeInput(r *http.Request) (service.SummarizeInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		var req summarizeJSON
		if err := decodeJSON(r, &req); err != nil {
			return service.SummarizeInput{}, err
		}
		return service.SummarizeInput{Text: req.Text, Style: req.Style, Language: req.Language}, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return service.SummarizeInput{}, h.bodyError(err)
	}
	defer r.MultipartForm.RemoveAll()

	in := service.SummarizeInput{
		Text:     r.FormValue("text"),
		Style:    r.FormValue("style"),
		Language: r.FormValue("language"),
	}

	part, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return service.SummarizeInput{}, h.bodyError(err)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return service.SummarizeInput{}, h.bodyError(err)
	}

	in.File = &extract.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return in, nil
}

// bodyError turns a failure to read the request body into a client error.
func (h *SummaryHandler) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return apperror.TooLarge("File too large")
	}
	h.logger.Warn("malformed multipart body", slog.String("error", err.Error()))
	return apperror.ValidationFailed("body", "Invalid form data")
}

// HandleShared returns the public view of a shared summary.
//
// HTTP: GET /api/summary/shared/{shareId}
// Auth: None. The response never includes the owner or the favorite flag.
func (h *SummaryHandler) HandleShared(w http.ResponseWriter, r *http.Request) {
	shared, err := h.summaries.GetShared(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shared)
}

// HandleHistory lists the caller's summaries, newest first.
//
// HTTP: GET /api/history
// Auth: Required
func (h *SummaryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	list, err := h.summaries.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleDelete removes one of the caller's summaries.
//
// HTTP: DELETE /api/history/{id}
// Auth: Required
func (h *SummaryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	if err := h.summaries.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Summary deleted"})
}

// HandleToggleFavorite flips the favorite flag.
//
// HTTP: PATCH /api/history/{id}/favorite
// Auth: Required
func (h *SummaryHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	id := chi.URLParam(r, "id")
	fav, err := h.summaries.ToggleFavorite(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FavoriteResponse{ID: id, Favorite: fav})
}
