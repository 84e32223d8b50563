// Package server wires the stores, the report aggregator and the handlers
// into one HTTP router.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/clubhouse/internal/backup"
	"github.com/dukerupert/clubhouse/internal/handler"
	"github.com/dukerupert/clubhouse/internal/importer"
	"github.com/dukerupert/clubhouse/internal/logging"
	"github.com/dukerupert/clubhouse/internal/middleware"
	"github.com/dukerupert/clubhouse/internal/model"
	"github.com/dukerupert/clubhouse/internal/report"
	"github.com/dukerupert/clubhouse/internal/store"
	ws "github.com/dukerupert/clubhouse/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	memberH       *handler.MemberHandler
	duesH         *handler.LedgerHandler[model.DuesFields, model.DuesPayment]
	attendanceH   *handler.LedgerHandler[model.AttendanceFields, model.AttendanceRecord]
	workHoursH    *handler.LedgerHandler[model.WorkHoursFields, model.WorkHoursRecord]
	reportH       *handler.ReportHandler
	settingsH     *handler.SettingsHandler
	importH       *handler.ImportHandler
	backupH       *handler.BackupHandler
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logging.Component(logger, "websocket"))

	memberStore := store.NewMemberStore(db)
	duesStore := store.NewDuesStore(db)
	attendanceStore := store.NewAttendanceStore(db)
	workHoursStore := store.NewWorkHoursStore(db)
	settingsStore := store.NewSettingsStore(db)
	backupStore := store.NewBackupStore(db)

	aggregator := report.New(memberStore, duesStore, attendanceStore, workHoursStore, settingsStore, logging.Component(logger, "report"))
	imp := importer.New(memberStore, logging.Component(logger, "importer"))

	backupMgr := backup.NewManager(backupCfg, db, backupStore, logging.Component(logger, "backup"), func(s backup.Status) {
		hub.Broadcast(ws.NewMessage(ws.EntityBackup, string(s.State), 0))
	})

	return &Server{
		db:            db,
		hub:           hub,
		memberH:       handler.NewMemberHandler(memberStore, hub, logging.Component(logger, "member")),
		duesH:         handler.NewDuesHandler(duesStore, memberStore, hub, logging.Component(logger, "dues")),
		attendanceH:   handler.NewAttendanceHandler(attendanceStore, memberStore, hub, logging.Component(logger, "attendance")),
		workHoursH:    handler.NewWorkHoursHandler(workHoursStore, memberStore, hub, logging.Component(logger, "work_hours")),
		reportH:       handler.NewReportHandler(aggregator, settingsStore, logging.Component(logger, "report")),
		settingsH:     handler.NewSettingsHandler(settingsStore, hub, logging.Component(logger, "settings")),
		importH:       handler.NewImportHandler(imp, hub, logging.Component(logger, "import")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, hub, logging.Component(logger, "backup")),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// BackupManager returns the backup manager for scheduled cleanup.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, logging.Component(s.logger, "websocket")))

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)
	mux.HandleFunc("POST /api/members/{id}/restore", s.memberH.Restore)
	mux.HandleFunc("DELETE /api/members/{id}/purge", s.memberH.Purge)

	// Ledger
	mux.HandleFunc("GET /api/members/{id}/dues", s.duesH.List)
	mux.HandleFunc("POST /api/members/{id}/dues", s.duesH.Create)
	mux.HandleFunc("PUT /api/dues/{id}", s.duesH.Update)
	mux.HandleFunc("DELETE /api/dues/{id}", s.duesH.Delete)

	mux.HandleFunc("GET /api/members/{id}/attendance", s.attendanceH.List)
	mux.HandleFunc("POST /api/members/{id}/attendance", s.attendanceH.Create)
	mux.HandleFunc("PUT /api/attendance/{id}", s.attendanceH.Update)
	mux.HandleFunc("DELETE /api/attendance/{id}", s.attendanceH.Delete)

	mux.HandleFunc("GET /api/members/{id}/work-hours", s.workHoursH.List)
	mux.HandleFunc("POST /api/members/{id}/work-hours", s.workHoursH.Create)
	mux.HandleFunc("PUT /api/work-hours/{id}", s.workHoursH.Update)
	mux.HandleFunc("DELETE /api/work-hours/{id}", s.workHoursH.Delete)

	// Reports
	mux.HandleFunc("GET /api/reports/dues", s.reportH.Dues)
	mux.HandleFunc("GET /api/reports/attendance", s.reportH.Attendance)
	mux.HandleFunc("GET /api/reports/work-hours", s.reportH.WorkHours)

	// Settings
	mux.HandleFunc("GET /api/settings", s.settingsH.List)
	mux.HandleFunc("PUT /api/settings", s.settingsH.Update)

	// Import and backups
	mux.HandleFunc("POST /api/import", s.importH.CSV)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Run)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)

	var h http.Handler = mux
	h = middleware.LocalOnly(h)
	return middleware.RequestLogger(logging.Component(s.logger, "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
