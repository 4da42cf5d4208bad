// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/repository"
	"github.com/bnrm/libadmin/internal/service"
	"github.com/bnrm/libadmin/internal/workflow"
)

// ActorHeader carries the acting administrator's name.
const ActorHeader = "X-Admin-User"

const defaultActor = "admin"

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func writePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func actorOf(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return defaultActor
}

// statusFor maps a service or repository error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalid), errors.Is(err, workflow.ErrNoteRequired):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrTransition),
		errors.Is(err, service.ErrRangeExhausted),
		errors.Is(err, repository.ErrNumberTaken),
		errors.Is(err, repository.ErrSlotTaken),
		errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Internal errors are logged and
// replaced by a generic message.
func fail(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Router ───────────────────────────────────────────────────────────────────

// NewRouter builds the API router with the global middleware stack.
func NewRouter(ranges *RangeHandler, bookings *BookingHandler, reviews *ReviewHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/ranges", func(r chi.Router) {
		r.Get("/", ranges.ListRanges)
		r.Post("/", ranges.CreateRange)
		r.Get("/{id}", ranges.GetRange)
		r.Get("/{id}/candidates", ranges.Candidates)
		r.Post("/{id}/allocate", ranges.Allocate)
		r.Post("/{id}/letter", ranges.Letter)
	})
	r.Post("/pools/{type}/allocate", ranges.AllocateFromPool)

	r.Route("/spaces", func(r chi.Router) {
		r.Get("/", bookings.ListSpaces)
		r.Get("/{id}/availability", bookings.Availability)
		r.Post("/{id}/quote", bookings.Quote)
		r.Get("/{id}/bookings", bookings.ListBookings)
		r.Post("/{id}/bookings", bookings.CreateBooking)
	})
	r.Route("/bookings/{id}", func(r chi.Router) {
		r.Get("/receipt", bookings.Receipt)
		r.Post("/{action}", bookings.Transition)
	})

	r.Route("/requests/{kind}", func(r chi.Router) {
		r.Get("/", reviews.List)
		r.Get("/{id}", reviews.Detail)
		r.Delete("/{id}", reviews.Delete)
		r.Get("/{id}/letter", reviews.Letter)
		r.Post("/{id}/{action}", reviews.Transition)
	})

	return r
}
