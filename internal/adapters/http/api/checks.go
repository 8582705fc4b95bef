package api

import (
	"net/http"

	"github.com/okian/tiergate/internal/domain/account"
	"github.com/okian/tiergate/internal/domain/types"
)

// ChecksHandler serves the synchronous killproof and application checks.
type ChecksHandler struct {
	deps CheckDependencies
}

// NewChecksHandler creates a new checks handler.
func NewChecksHandler(deps CheckDependencies) *ChecksHandler {
	return &ChecksHandler{deps: deps}
}

type killproofRequest struct {
	Defeated []string `json:"defeated"`
	Tier     int      `json:"tier"`
}

// HandleKillproof handles POST /killproof.
func (h *ChecksHandler) HandleKillproof(w http.ResponseWriter, r *http.Request) {
	const op = "api.killproof"
	var req killproofRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	g, err := h.deps.Killproof(req.Defeated, req.Tier)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromGroup(g))
}

// HandleApplication handles POST /applications.
func (h *ChecksHandler) HandleApplication(w http.ResponseWriter, r *http.Request) {
	const op = "api.application"
	var app account.Application
	if err := decodeJSON(w, r, &app); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := h.deps.EvaluateApplication(app)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromCollection(c))
}
