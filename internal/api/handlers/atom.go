package handlers

import (
	"net/http"
	"strconv"

	mw "github.com/Harshitk-cp/cogquery/internal/api/middleware"
	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AtomHandler struct {
	svc    *service.AtomService
	logger *zap.Logger
}

func NewAtomHandler(svc *service.AtomService, logger *zap.Logger) *AtomHandler {
	return &AtomHandler{svc: svc, logger: logger}
}

func (h *AtomHandler) Types(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": h.svc.Types().Infos()})
}

// Create inserts or merges one atom. Children may be given in full or by
// handle.
func (h *AtomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var spec codec.AtomSpec
	if err := decodeBody(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shape, err := codec.Decode(r.Context(), h.svc.Types(), h.svc, spec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	a, err := h.svc.Insert(r.Context(), shape)
	if err != nil {
		mw.Logger(r.Context(), h.logger).Error("insert atom failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, codec.Encode(h.svc.Types(), a))
}

func (h *AtomHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseUint(chi.URLParam(r, "handle"), 10, 64)
	if err != nil || n == 0 {
		writeError(w, http.StatusBadRequest, "invalid atom handle")
		return
	}
	a, err := h.svc.Get(r.Context(), domain.Handle(n))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, codec.Encode(h.svc.Types(), a))
}

// List returns atoms of ?type=, including subtypes unless ?subtypes=false.
func (h *AtomHandler) List(w http.ResponseWriter, r *http.Request) {
	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	limit, ok := intParam(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	subtypes := r.URL.Query().Get("subtypes") != "false"

	atoms, err := h.svc.ByType(r.Context(), typeName, subtypes, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"atoms": codec.EncodeAll(h.svc.Types(), atoms),
		"count": len(atoms),
	})
}

// Nodes returns nodes whose name starts with ?prefix=, ordered by name.
func (h *AtomHandler) Nodes(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	q := r.URL.Query()
	nodes, err := h.svc.NodesByPrefix(r.Context(), q.Get("type"), q.Get("prefix"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": codec.EncodeAll(h.svc.Types(), nodes),
		"count": len(nodes),
	})
}
