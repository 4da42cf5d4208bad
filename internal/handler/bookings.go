package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/workflow"
)

// BookingAPI is the space-rental surface of the service layer.
type BookingAPI interface {
	ListSpaces(ctx context.Context) ([]model.Space, error)
	Availability(ctx context.Context, spaceID, date, start string) (*model.Availability, error)
	Quote(ctx context.Context, spaceID string, req model.QuoteRequest) (*model.Quote, error)
	ListBookings(ctx context.Context, spaceID, date string) ([]model.Booking, error)
	CreateBooking(ctx context.Context, spaceID string, req model.CreateBookingRequest, actor string) (*model.Booking, error)
	TransitionBooking(ctx context.Context, id string, action workflow.Action, note, actor string) (*model.TransitionResult[model.Booking], error)
	Receipt(ctx context.Context, id string) ([]byte, error)
}

// BookingHandler serves spaces and their bookings.
type BookingHandler struct {
	svc    BookingAPI
	logger *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc BookingAPI, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// ListSpaces handles GET /spaces
func (h *BookingHandler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.svc.ListSpaces(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if spaces == nil {
		spaces = []model.Space{}
	}
	writeJSON(w, http.StatusOK, spaces)
}

// Availability handles GET /spaces/{id}/availability?date=&start=
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := h.svc.Availability(r.Context(), chi.URLParam(r, "id"), q.Get("date"), q.Get("start"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Quote handles POST /spaces/{id}/quote
func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req model.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	quote, err := h.svc.Quote(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// ListBookings handles GET /spaces/{id}/bookings?date=
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListBookings(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("date"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// CreateBooking handles POST /spaces/{id}/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), chi.URLParam(r, "id"), req, actorOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Transition handles POST /bookings/{id}/{action}
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	action, err := workflow.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req model.TransitionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.TransitionBooking(r.Context(), chi.URLParam(r, "id"), action, req.Note, actorOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Receipt handles GET /bookings/{id}/receipt
func (h *BookingHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pdf, err := h.svc.Receipt(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writePDF(w, "recu-"+id+".pdf", pdf)
}
