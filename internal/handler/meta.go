package handler

import (
	"math"
	"net/http"
	"time"
)

// MetaHandler serves the service banner and the health check.
type MetaHandler struct {
	env     string
	started time.Time
	now     func() time.Time
}

// NewMetaHandler creates a MetaHandler; uptime is measured from this call.
func NewMetaHandler(env string) *MetaHandler {
	return &MetaHandler{env: env, started: time.Now(), now: time.Now}
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Name        string            `json:"name"`
	Status      string            `json:"status"`
	Environment string            `json:"environment"`
	Endpoints   map[string]string `json:"endpoints"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    float64   `json:"uptime"` // seconds
	Timestamp time.Time `json:"timestamp"`
}

// HandleIndex describes the API.
//
// HTTP: GET /
func (h *MetaHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Name:        "AI Text Summarizer API",
		Status:      "running 🚀",
		Environment: h.env,
		Endpoints: map[string]string{
			"auth":    "/auth",
			"summary": "/api/summary",
			"history": "/api/history",
			"health":  "/health",
		},
	})
}

// HandleHealth is the liveness check.
//
// HTTP: GET /health
func (h *MetaHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	uptime := now.Sub(h.started).Seconds()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    math.Round(uptime*1000) / 1000,
		Timestamp: now.UTC(),
	})
}

// HandleNotFound answers unmatched routes.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, MessageResponse{Message: "Route Not Found"})
}

// HandleMethodNotAllowed answers a known route called with the wrong method.
func HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, MessageResponse{Message: "Method Not Allowed"})
}
