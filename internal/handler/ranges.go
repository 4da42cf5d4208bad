package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/model"
)

// RangeAPI is the identifier-range surface of the service layer.
type RangeAPI interface {
	CreateRange(ctx context.Context, req model.CreateRangeRequest, actor string) (*model.NumberRange, error)
	ListRanges(ctx context.Context, f model.RangeFilter) ([]model.NumberRange, error)
	GetRange(ctx context.Context, id string) (*model.NumberRange, error)
	Candidates(ctx context.Context, id string) ([]string, error)
	Allocate(ctx context.Context, id, custom, actor string) (*model.Allocation, error)
	AllocateFromPool(ctx context.Context, t model.NumberType, actor string) (*model.Allocation, error)
	AttributionLetter(ctx context.Context, id string) ([]byte, error)
}

// RangeHandler serves ISBN/ISSN/ISMN range operations.
type RangeHandler struct {
	svc    RangeAPI
	logger *zap.Logger
}

// NewRangeHandler constructs a RangeHandler.
func NewRangeHandler(svc RangeAPI, logger *zap.Logger) *RangeHandler {
	return &RangeHandler{svc: svc, logger: logger}
}

// CreateRange handles POST /ranges
func (h *RangeHandler) CreateRange(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rng, err := h.svc.CreateRange(r.Context(), req, actorOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rng)
}

// ListRanges handles GET /ranges?kind=&type=&status=
func (h *RangeHandler) ListRanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.RangeFilter{
		Kind:   model.RangeKind(q.Get("kind")),
		Status: model.RangeStatus(q.Get("status")),
	}
	if f.Kind != "" && f.Kind != model.RangeReserved && f.Kind != model.RangeShared {
		writeError(w, http.StatusBadRequest, "kind must be reserved or shared")
		return
	}
	if f.Status != "" && f.Status != model.RangeActive && f.Status != model.RangeExhausted {
		writeError(w, http.StatusBadRequest, "status must be active or exhausted")
		return
	}
	if t := q.Get("type"); t != "" {
		nt, err := model.ParseNumberType(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.NumberType = nt
	}

	ranges, err := h.svc.ListRanges(r.Context(), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if ranges == nil {
		ranges = []model.NumberRange{}
	}
	writeJSON(w, http.StatusOK, ranges)
}

// GetRange handles GET /ranges/{id}
func (h *RangeHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	rng, err := h.svc.GetRange(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rng)
}

// Candidates handles GET /ranges/{id}/candidates
// An exhausted range answers 200 with an empty list.
func (h *RangeHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Candidates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if c == nil {
		c = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"candidates": c})
}

// Allocate handles POST /ranges/{id}/allocate
// The body is optional; {"custom": "..."} confirms a manual value.
func (h *RangeHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req model.AllocateRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := h.svc.Allocate(r.Context(), chi.URLParam(r, "id"), req.Custom, actorOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// AllocateFromPool handles POST /pools/{type}/allocate
func (h *RangeHandler) AllocateFromPool(w http.ResponseWriter, r *http.Request) {
	t, err := model.ParseNumberType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.svc.AllocateFromPool(r.Context(), t, actorOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Letter handles POST /ranges/{id}/letter
func (h *RangeHandler) Letter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pdf, err := h.svc.AttributionLetter(r.Context(), id)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writePDF(w, "attribution-"+id+".pdf", pdf)
}
