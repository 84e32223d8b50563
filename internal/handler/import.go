package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/clubhouse/internal/importer"
	"github.com/dukerupert/clubhouse/internal/websocket"
)

const maxImportBytes = 10 << 20

type ImportHandler struct {
	importer *importer.Importer
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewImportHandler(im *importer.Importer, hub *websocket.Hub, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{importer: im, hub: hub, logger: logger}
}

// CSV imports the request body as a CSV roster. ?name= labels the source in
// the result and the log.
func (h *ImportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "upload.csv"
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)

	res, err := h.importer.Import(r.Context(), importer.NewCSVSource(name, body))
	if res != nil && res.Added+res.Updated > 0 {
		h.hub.Notify(websocket.EntityImport, websocket.ActionCompleted, 0)
	}
	if err != nil {
		writeError(w, h.logger, err, "import members")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
