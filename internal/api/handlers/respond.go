package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/cogquery/internal/codec"
	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/Harshitk-cp/cogquery/internal/match"
	"github.com/Harshitk-cp/cogquery/internal/rule"
	"github.com/Harshitk-cp/cogquery/internal/service"
	"github.com/Harshitk-cp/cogquery/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service, store and rule errors to a status code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownType),
		errors.Is(err, codec.ErrInvalidSpec),
		errors.Is(err, store.ErrInvalidShape),
		errors.Is(err, match.ErrUnboundVariable),
		errors.Is(err, service.ErrEmptyPattern),
		errors.Is(err, service.ErrPolicyUnknown):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, service.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotApplicable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, rule.ErrInvalidPremises),
		errors.Is(err, rule.ErrNotInvertible):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(r *http.Request, name string) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
