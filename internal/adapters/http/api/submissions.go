package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/internal/domain/types"
)

// SubmissionsHandler serves the submission lifecycle routes.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleCreate handles POST /submissions.
func (h *SubmissionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_submission"
	var req model.SubmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sub, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, types.Accepted{ID: sub.ID, Status: string(sub.Status)})
}

// HandleGet handles GET /submissions/{id}.
func (h *SubmissionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.deps.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, Wrap("api.get_submission", err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromSubmission(sub))
}

// HandleSetStatus handles PUT /submissions/{id}/status.
func (h *SubmissionsHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_status"
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.deps.SetStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	sub, err := h.deps.Get(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromSubmission(sub))
}

// HandleRevalidate handles POST /submissions/{id}/revalidate?debug=&mechanic=.
func (h *SubmissionsHandler) HandleRevalidate(w http.ResponseWriter, r *http.Request) {
	const op = "api.revalidate"
	q := r.URL.Query()
	debug := false
	if v := q.Get("debug"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		debug = parsed
	}
	verdict, err := h.deps.Revalidate(r.Context(), chi.URLParam(r, "id"), debug, q.Get("mechanic"))
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromCollection(verdict))
}

// HandleHistory handles GET /players/{submitterID}/submissions.
func (h *SubmissionsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	subs, err := h.deps.History(r.Context(), chi.URLParam(r, "submitterID"))
	if err != nil {
		writeError(w, Wrap("api.history", err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromSubmissions(subs))
}
