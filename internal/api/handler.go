// Package api provides the HTTP and WebSocket surface of the honeytrap
// service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the honeytrap API.
type Handler struct {
	svc     *service.Services
	metrics *metrics.Collector
}

// NewHandler creates a new Handler.
func NewHandler(svc *service.Services, mc *metrics.Collector) *Handler {
	if mc == nil {
		mc = metrics.NewCollector()
	}
	return &Handler{svc: svc, metrics: mc}
}

// Routes builds the router with every endpoint mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Get("/jobs", h.listJobs)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/honeytrap", func(r chi.Router) {
		r.Post("/create", h.createDecoy)
		r.Get("/list", h.listDecoys)
		r.Get("/detected", h.listDetected)
		r.Get("/stats", h.stats)
		r.Post("/log", h.logAction)
		r.Post("/analyze", h.analyze)
		r.Post("/comments/{id}/check", h.checkComment)
		r.Get("/{username}", h.getDecoy)
	})

	r.Post("/accounts", h.createAccount)
	r.Get("/accounts/{username}", h.getAccount)

	r.Route("/friends/{username}", func(r chi.Router) {
		r.Get("/", h.listFriends)
		r.Post("/requests/{target}", h.sendFriendRequest)
		r.Delete("/requests/{target}", h.withdrawFriendRequest)
		r.Post("/accept/{friend}", h.acceptFriendRequest)
		r.Post("/reject/{friend}", h.rejectFriendRequest)
	})

	r.Route("/probe/{initiator}/{counterpart}", func(r chi.Router) {
		r.Post("/", h.startProbe)
		r.Get("/", h.probeResult)
		r.Post("/messages", h.feedProbe)
	})
	r.Get("/ws/probe/{initiator}/{counterpart}", h.probeSocket)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.svc.Jobs())
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	var ve *models.ValidationError
	var se *models.StoreError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request error", "path", r.URL.Path, "error", err)
	}
	Error(w, status, err.Error())
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return &models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
