package handlers

import (
	"errors"
	"net/http"
	"strconv"

	mw "github.com/Harshitk-cp/cogquery/internal/api/middleware"
	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/rule"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RuleHandler struct {
	svc    *service.InferenceService
	atoms  *service.AtomService
	logger *zap.Logger
}

func NewRuleHandler(svc *service.InferenceService, atoms *service.AtomService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{svc: svc, atoms: atoms, logger: logger}
}

type ruleResponse struct {
	Name           string           `json:"name"`
	Inputs         []codec.AtomSpec `json:"inputs,omitempty"`
	Output         *codec.AtomSpec  `json:"output,omitempty"`
	FreeInputArity bool             `json:"free_input_arity"`
	TVSources      []string         `json:"tv_sources,omitempty"`
}

func (h *RuleHandler) describe(r rule.Rule) ruleResponse {
	types := h.svc.Types()
	spec := r.Spec()
	resp := ruleResponse{
		Name:           spec.Name,
		Inputs:         codec.EncodeAll(types, spec.Inputs),
		FreeInputArity: spec.FreeInputArity,
	}
	if spec.Output != nil {
		out := codec.Encode(types, spec.Output)
		resp.Output = &out
	}
	for _, src := range spec.TVSources {
		if src.Variable != "" {
			resp.TVSources = append(resp.TVSources, src.Variable)
		} else {
			resp.TVSources = append(resp.TVSources, "premise:"+strconv.Itoa(src.Premise))
		}
	}
	return resp
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules := h.svc.Rules()
	out := make([]ruleResponse, len(rules))
	for i, rl := range rules {
		out[i] = h.describe(rl)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

type computeRequest struct {
	Premises []codec.AtomSpec `json:"premises"`
}

// Compute applies a rule once. A formula that has no value for the premises
// is reported as a normal response with no_result set.
func (h *RuleHandler) Compute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req computeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	premises, err := codec.DecodeAll(r.Context(), h.svc.Types(), h.atoms, req.Premises)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	a, err := h.svc.ComputeAtoms(r.Context(), name, premises)
	if errors.Is(err, rule.ErrNoResult) {
		writeJSON(w, http.StatusOK, map[string]any{"no_result": true, "reason": err.Error()})
		return
	}
	if err != nil {
		if !isClientError(err) {
			mw.Logger(r.Context(), h.logger).Error("rule compute failed", zap.String("rule", name), zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"atom": codec.Encode(h.svc.Types(), a)})
}

type applyRequest struct {
	Policy        string  `json:"policy"`
	MinConfidence float64 `json:"min_confidence"`
	Limit         int     `json:"limit"`
}

func (h *RuleHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	res, err := h.svc.ApplyAll(r.Context(), chi.URLParam(r, "name"), service.ApplyRequest{
		Policy:        req.Policy,
		MinConfidence: req.MinConfidence,
		Limit:         req.Limit,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type inputsRequest struct {
	Output codec.AtomSpec `json:"output"`
}

// Inputs lists premise shapes that could yield the given conclusion.
func (h *RuleHandler) Inputs(w http.ResponseWriter, r *http.Request) {
	rl, err := h.svc.Rule(chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req inputsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	types := h.svc.Types()
	output, err := codec.Decode(r.Context(), types, h.atoms, req.Output)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	shapes, err := rl.InputShapes(r.Context(), output)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([][]codec.AtomSpec, len(shapes))
	for i, s := range shapes {
		out[i] = codec.EncodeAll(types, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"shapes": out})
}

type outputRequest struct {
	Inputs []codec.AtomSpec `json:"inputs"`
}

// Output returns the conclusion shape for the given inputs without
// committing anything.
func (h *RuleHandler) Output(w http.ResponseWriter, r *http.Request) {
	rl, err := h.svc.Rule(chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req outputRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	types := h.svc.Types()
	inputs, err := codec.DecodeAll(r.Context(), types, h.atoms, req.Inputs)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	shape, err := rl.OutputShape(r.Context(), inputs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"output": codec.Encode(types, shape)})
}

func isClientError(err error) bool {
	var verr *rule.ValidationError
	return errors.As(err, &verr) || errors.Is(err, service.ErrRuleNotFound) || errors.Is(err, domain.ErrUnknownType)
}
