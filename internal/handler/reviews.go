package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/workflow"
)

// ReviewAPI is the request-review surface of the service layer.
type ReviewAPI interface {
	List(ctx context.Context, kind model.RequestKind, f model.ListFilter) (*model.Page[model.Request], error)
	Detail(ctx context.Context, kind model.RequestKind, id string) (*model.RequestDetail, error)
	Transition(ctx context.Context, kind model.RequestKind, id string, action workflow.Action, note, actor string) (*model.TransitionResult[model.Request], error)
	Delete(ctx context.Context, kind model.RequestKind, id, actor string) error
	Letter(ctx context.Context, kind model.RequestKind, id string) ([]byte, error)
}

// ReviewHandler serves the review queues of every request kind.
type ReviewHandler struct {
	svc    ReviewAPI
	logger *zap.Logger
}

// NewReviewHandler constructs a ReviewHandler.
func NewReviewHandler(svc ReviewAPI, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, logger: logger}
}

// kindParam writes a 400 and returns false when the URL names no known kind.
func kindParam(w http.ResponseWriter, r *http.Request) (model.RequestKind, bool) {
	kind, err := model.ParseRequestKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// List handles GET /requests/{kind}?status=&q=&sort=&order=&page=&page_size=
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := model.ListFilter{
		Query:     q.Get("q"),
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
	}
	if s := q.Get("status"); s != "" {
		st, err := model.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = st
	}
	var err error
	if f.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	if f.PageSize, err = intParam(q.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be an integer")
		return
	}

	page, err := h.svc.List(r.Context(), kind, f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Detail handles GET /requests/{kind}/{id}
func (h *ReviewHandler) Detail(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Detail(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Transition handles POST /requests/{kind}/{id}/{action}
func (h *ReviewHandler) Transition(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
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

	res, err := h.svc.Transition(r.Context(), kind, chi.URLParam(r, "id"), action, req.Note, actorOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Delete handles DELETE /requests/{kind}/{id}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), kind, chi.URLParam(r, "id"), actorOf(r)); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Letter handles GET /requests/{kind}/{id}/letter
func (h *ReviewHandler) Letter(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	pdf, err := h.svc.Letter(r.Context(), kind, id)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writePDF(w, string(kind)+"-"+id+".pdf", pdf)
}
