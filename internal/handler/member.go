package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
	"github.com/dukerupert/clubhouse/internal/websocket"
)

type MemberHandler struct {
	members *store.MemberStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewMemberHandler(ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: ms, hub: hub, logger: logger}
}

// List serves active members by default. ?deleted=true lists the recycle
// bin, ?q= searches and ?type= filters by a comma-separated list of types.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	types, err := parseTypes(q.Get("type"))
	if err != nil {
		writeError(w, h.logger, err, "list members")
		return
	}

	filter := store.MemberFilter{
		ActiveOnly: true,
		Types:      types,
		Search:     strings.TrimSpace(q.Get("q")),
	}
	if q.Get("deleted") == "true" {
		filter.ActiveOnly, filter.DeletedOnly = false, true
	}

	members, err := h.members.List(filter)
	if err != nil {
		writeError(w, h.logger, err, "list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	m, err := h.members.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err, "get member")
		return
	}
	if m == nil {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.MemberFields
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.members.Create(req)
	if err != nil {
		writeError(w, h.logger, err, "create member")
		return
	}
	h.hub.Notify(websocket.EntityMember, websocket.ActionCreated, m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req model.MemberFields
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.members.Update(id, req)
	if err != nil {
		writeError(w, h.logger, err, "update member")
		return
	}
	h.hub.Notify(websocket.EntityMember, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, m)
}

// Delete moves the member to the recycle bin.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.members.SoftDelete, websocket.ActionDeleted, "delete member")
}

func (h *MemberHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.members.Restore, websocket.ActionRestored, "restore member")
}

// Purge removes a recycled member and the member's ledger for good.
func (h *MemberHandler) Purge(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.members.HardDelete, websocket.ActionPurged, "purge member")
}

func (h *MemberHandler) change(w http.ResponseWriter, r *http.Request, fn func(int64) error, action, what string) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := fn(id); err != nil {
		writeError(w, h.logger, err, what)
		return
	}
	h.hub.Notify(websocket.EntityMember, action, id)
	w.WriteHeader(http.StatusNoContent)
}
