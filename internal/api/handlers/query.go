package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/service"
)

type QueryHandler struct {
	svc   *service.InferenceService
	atoms *service.AtomService
}

func NewQueryHandler(svc *service.InferenceService, atoms *service.AtomService) *QueryHandler {
	return &QueryHandler{svc: svc, atoms: atoms}
}

type queryRequest struct {
	Clauses       []codec.AtomSpec `json:"clauses"`
	Variables     []string         `json:"variables"`
	Policy        string           `json:"policy"`
	MinConfidence float64          `json:"min_confidence"`
	Limit         int              `json:"limit"`
}

type solutionResponse struct {
	Binding    map[string]codec.AtomSpec `json:"binding"`
	Groundings []codec.AtomSpec          `json:"groundings"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Clauses) == 0 {
		writeError(w, http.StatusBadRequest, "clauses are required")
		return
	}
	if req.MinConfidence < 0 || req.MinConfidence > 1 {
		writeError(w, http.StatusBadRequest, "min_confidence must be within [0,1]")
		return
	}

	types := h.svc.Types()
	clauses, err := codec.DecodeAll(r.Context(), types, h.atoms, req.Clauses)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.svc.Query(r.Context(), service.QueryRequest{
		Clauses:       clauses,
		Variables:     req.Variables,
		Policy:        req.Policy,
		MinConfidence: req.MinConfidence,
		Limit:         req.Limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]solutionResponse, len(res.Solutions))
	for i, sol := range res.Solutions {
		out[i] = solutionResponse{
			Binding:    codec.EncodeBinding(types, sol.Binding),
			Groundings: codec.EncodeAll(types, sol.Groundings),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"solutions": out,
		"count":     len(out),
		"truncated": res.Truncated,
	})
}
