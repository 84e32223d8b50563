package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
	"github.com/dukerupert/clubhouse/internal/websocket"
)

// ledgerStore is what DuesStore, AttendanceStore and WorkHoursStore share.
type ledgerStore[F, R any] interface {
	Create(memberID int64, f F) (*R, error)
	Update(id int64, f F) (*R, error)
	Delete(id int64) error
	GetByID(id int64) (*R, error)
	ListByMember(memberID int64) ([]R, error)
}

// LedgerHandler serves one kind of ledger row: dues payments, attendance
// records or work hours.
type LedgerHandler[F, R any] struct {
	entity  string
	rows    ledgerStore[F, R]
	members *store.MemberStore
	keys    func(*R) (id, memberID int64)
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewDuesHandler(ds *store.DuesStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler[model.DuesFields, model.DuesPayment] {
	return &LedgerHandler[model.DuesFields, model.DuesPayment]{
		entity:  websocket.EntityDues,
		rows:    ds,
		members: ms,
		keys:    func(p *model.DuesPayment) (int64, int64) { return p.ID, p.MemberID },
		hub:     hub,
		logger:  logger,
	}
}

func NewAttendanceHandler(as *store.AttendanceStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler[model.AttendanceFields, model.AttendanceRecord] {
	return &LedgerHandler[model.AttendanceFields, model.AttendanceRecord]{
		entity:  websocket.EntityAttendance,
		rows:    as,
		members: ms,
		keys:    func(a *model.AttendanceRecord) (int64, int64) { return a.ID, a.MemberID },
		hub:     hub,
		logger:  logger,
	}
}

func NewWorkHoursHandler(hs *store.WorkHoursStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler[model.WorkHoursFields, model.WorkHoursRecord] {
	return &LedgerHandler[model.WorkHoursFields, model.WorkHoursRecord]{
		entity:  websocket.EntityWorkHours,
		rows:    hs,
		members: ms,
		keys:    func(w *model.WorkHoursRecord) (int64, int64) { return w.ID, w.MemberID },
		hub:     hub,
		logger:  logger,
	}
}

// List serves the member's rows newest first. Rows that cannot be decoded
// fail the request with their ids so they can be repaired.
func (h *LedgerHandler[F, R]) List(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}
	ok, err := h.members.Exists(memberID)
	if err != nil {
		writeError(w, h.logger, err, "list "+h.entity)
		return
	}
	if !ok {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}

	rows, err := h.rows.ListByMember(memberID)
	var malformed *store.MalformedRowsError
	if errors.As(err, &malformed) {
		h.logger.Warn("malformed ledger rows", "member_id", memberID, "table", malformed.Table, "ids", malformed.IDs)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("%d %s rows could not be read", len(malformed.IDs), malformed.Table),
			"ids":   malformed.IDs,
		})
		return
	}
	if err != nil {
		writeError(w, h.logger, err, "list "+h.entity)
		return
	}
	if rows == nil {
		rows = []R{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *LedgerHandler[F, R]) Create(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid member id")
		return
	}
	var req F
	if !decodeJSON(w, r, &req) {
		return
	}
	row, err := h.rows.Create(memberID, req)
	if err != nil {
		writeError(w, h.logger, err, "create "+h.entity)
		return
	}
	h.notify(websocket.ActionCreated, row)
	writeJSON(w, http.StatusCreated, row)
}

func (h *LedgerHandler[F, R]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req F
	if !decodeJSON(w, r, &req) {
		return
	}
	row, err := h.rows.Update(id, req)
	if err != nil {
		writeError(w, h.logger, err, "update "+h.entity)
		return
	}
	h.notify(websocket.ActionUpdated, row)
	writeJSON(w, http.StatusOK, row)
}

func (h *LedgerHandler[F, R]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	// Read first so the notification can name the member. A row that no
	// longer decodes can still be deleted.
	row, _ := h.rows.GetByID(id)
	if err := h.rows.Delete(id); err != nil {
		writeError(w, h.logger, err, "delete "+h.entity)
		return
	}
	msg := websocket.NewMessage(h.entity, websocket.ActionDeleted, id)
	if row != nil {
		_, memberID := h.keys(row)
		msg = msg.ForMember(memberID)
	}
	h.hub.Broadcast(msg)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler[F, R]) notify(action string, row *R) {
	id, memberID := h.keys(row)
	h.hub.Broadcast(websocket.NewMessage(h.entity, action, id).ForMember(memberID))
}
