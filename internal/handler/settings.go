package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
	"github.com/dukerupert/clubhouse/internal/websocket"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, hub: hub, logger: logger}
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List()
	if err != nil {
		writeError(w, h.logger, err, "get settings")
		return
	}
	if settings == nil {
		settings = []model.Setting{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// Update saves a key/value object. Either every value is valid and saved or
// nothing changes.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.settings.SetMany(req); err != nil {
		writeError(w, h.logger, err, "save settings")
		return
	}
	h.hub.Notify(websocket.EntitySettings, websocket.ActionUpdated, 0)

	all, err := h.settings.GetAll()
	if err != nil {
		writeError(w, h.logger, err, "get settings")
		return
	}
	writeJSON(w, http.StatusOK, all)
}
