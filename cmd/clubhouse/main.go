package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukerupert/clubhouse/internal/backup"
	"github.com/dukerupert/clubhouse/internal/config"
	"github.com/dukerupert/clubhouse/internal/database"
	"github.com/dukerupert/clubhouse/internal/importer"
	"github.com/dukerupert/clubhouse/internal/logging"
	"github.com/dukerupert/clubhouse/internal/server"
	"github.com/dukerupert/clubhouse/internal/store"
)

const usage = `usage: clubhouse <command> [flags]

commands:
  serve     run the local API (default)
  import    import members from a CSV file or a Google Sheet
  backup    take an encrypted snapshot now
  restore   decrypt a snapshot into a new database file
`

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "import":
		err = runImport(cfg, logger, args)
	case "backup":
		err = runBackup(cfg, logger, args)
	case "restore":
		err = runRestore(cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func openDB(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := database.Open(cfg.DBPath, logging.Component(logger, "database"))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return db, nil
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, cfg.Backup(), logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prune expired backups once a day.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			if err := srv.BackupManager().Cleanup(ctx, cfg.BackupRetentionDays); err != nil {
				logger.Warn("backup cleanup failed", "error", err)
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("clubhouse listening", "addr", "http://"+cfg.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runImport(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	sheet := fs.Bool("sheet", false, "read the configured Google Sheet instead of a file")
	sheetID := fs.String("sheet-id", "", "spreadsheet id, overrides CLUBHOUSE_SHEETS_ID")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var src importer.Source
	switch {
	case *sheet || *sheetID != "":
		sc, err := cfg.Sheets(*sheetID)
		if err != nil {
			return err
		}
		ss, err := importer.NewSheetsSource(ctx, sc)
		if err != nil {
			return err
		}
		src = ss
	case fs.NArg() == 1:
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("open %s: %w", fs.Arg(0), err)
		}
		defer f.Close()
		src = importer.NewCSVSource(fs.Arg(0), f)
	default:
		return errors.New("import needs a CSV file argument or -sheet")
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := importer.New(store.NewMemberStore(db), logging.Component(logger, "importer")).Import(ctx, src)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d added, %d updated, %d skipped\n", res.Source, res.Added, res.Updated, res.Skipped)
	for _, re := range res.Errors {
		fmt.Printf("  line %d: %s\n", re.Line, re.Err)
	}
	return nil
}

func runBackup(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	passphrase := fs.String("passphrase", "", "encryption passphrase, overrides CLUBHOUSE_BACKUP_PASSPHRASE")
	fs.Parse(args)

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := backup.NewManager(cfg.Backup(), db, store.NewBackupStore(db), logging.Component(logger, "backup"), nil)
	b, err := mgr.RunNow(context.Background(), *passphrase)
	if err != nil {
		return err
	}
	fmt.Printf("backup %d written to %s (%d bytes)\n", b.ID, b.Location, b.SizeBytes)
	return nil
}

func runRestore(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	from := fs.String("from", "", "encrypted snapshot file to restore")
	id := fs.Int64("id", 0, "recorded backup id to restore")
	to := fs.String("to", "", "new database file to create")
	passphrase := fs.String("passphrase", "", "encryption passphrase, overrides CLUBHOUSE_BACKUP_PASSPHRASE")
	fs.Parse(args)

	if *to == "" {
		return errors.New("restore needs -to")
	}
	pass := *passphrase
	if pass == "" {
		pass = cfg.BackupPassphrase
	}

	switch {
	case *from != "":
		if err := backup.RestoreFile(*from, pass, *to); err != nil {
			return err
		}
	case *id != 0:
		db, err := openDB(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		mgr := backup.NewManager(cfg.Backup(), db, store.NewBackupStore(db), logging.Component(logger, "backup"), nil)
		if err := mgr.Restore(context.Background(), *id, pass, *to); err != nil {
			return err
		}
	default:
		return errors.New("restore needs -from or -id")
	}
	fmt.Printf("restored into %s; stop clubhouse and replace %s with it to use it\n", *to, cfg.DBPath)
	return nil
}
