package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/clubhouse/internal/backup"
	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/store"
	"github.com/dukerupert/clubhouse/internal/websocket"
)

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewBackupHandler(mgr *backup.Manager, bs *store.BackupStore, hub *websocket.Hub, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: mgr, backups: bs, hub: hub, logger: logger}
}

type backupListResponse struct {
	Status     backup.Status  `json:"status"`
	TotalBytes int64          `json:"total_bytes"`
	Backups    []model.Backup `json:"backups"`
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.backups.List(50)
	if err != nil {
		writeError(w, h.logger, err, "list backups")
		return
	}
	total, err := h.backups.TotalSize()
	if err != nil {
		writeError(w, h.logger, err, "list backups")
		return
	}
	if list == nil {
		list = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backupListResponse{
		Status:     h.manager.Status(),
		TotalBytes: total,
		Backups:    list,
	})
}

type runBackupRequest struct {
	Passphrase string `json:"passphrase"`
}

// Run takes a snapshot now. The body may carry a passphrase; without one the
// configured passphrase is used.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runBackupRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.manager.RunNow(r.Context(), req.Passphrase)
	if errors.Is(err, backup.ErrNoPassphrase) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("backup failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.hub.Notify(websocket.EntityBackup, websocket.ActionCompleted, b.ID)
	writeJSON(w, http.StatusCreated, b)
}

// Download streams the encrypted snapshot as stored.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	rc, b, err := h.manager.Open(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "open backup")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	if b.SizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(b.SizeBytes))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("backup download interrupted", "backup_id", id, "error", err)
	}
}
