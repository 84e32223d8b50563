// Package handler serves the JSON and CSV API the desktop UI talks to.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseOptionalID reads an integer query parameter, nil when absent.
func parseOptionalID(r *http.Request, name string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, &model.ValidationError{Field: name, Message: fmt.Sprintf("%q is not an id", v)}
	}
	return &id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeMessage(w, http.StatusBadRequest, verr.Error())
		} else {
			writeMessage(w, http.StatusBadRequest, "invalid JSON")
		}
		return false
	}
	return true
}

// writeError maps store and validation errors to a status. Anything
// unexpected is logged and reported as "failed to <action>".
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrMemberActive):
		writeMessage(w, http.StatusConflict, "member must be deleted before it can be purged")
	default:
		logger.Error("failed to "+action, "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// splitList parses a comma-separated query value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTypes(v string) ([]model.MembershipType, error) {
	var types []model.MembershipType
	for _, part := range splitList(v) {
		t, err := model.ParseMembershipType(part)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
