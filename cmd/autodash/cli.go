package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/autodash/simulator/internal/config"
	"github.com/autodash/simulator/internal/database"
	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/internal/model/convert"
	"github.com/autodash/simulator/internal/storage/memory"
	v1 "github.com/autodash/simulator/internal/storage/memory/export/v1"
	"github.com/autodash/simulator/pkg/core"

	"github.com/spf13/pflag"
	"gorm.io/gorm"
)

// runExport reads recorded sessions back from Postgres (or a SQLite dump) and
// writes them in the same JSON format the memory backend produces.
func runExport(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	sqlitePath := fs.String("sqlite", "", "read from this SQLite dump instead of Postgres")
	outDir := fs.String("out", ".", "directory the export files are written to")
	compress := fs.Bool("gzip", false, "gzip the export files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sessionIDs := fs.Args()
	if len(sessionIDs) == 0 {
		return errors.New("no session IDs provided")
	}

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintln(out, "Using default config:", err)
	}

	db, err := openExportDB(*sqlitePath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	geoCfg := config.GetGeoConfig()
	projector := geo.NewProjector(geoCfg.OriginLon, geoCfg.OriginLat, geoCfg.MetersPerUnit)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	for _, id := range sessionIDs {
		txStart := time.Now()
		path, err := exportSession(db, id, *outDir, *compress, projector)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %s to %s in %s\n", id, path, time.Since(txStart).Round(time.Millisecond))
	}
	return nil
}

func openExportDB(sqlitePath string) (*gorm.DB, error) {
	if sqlitePath != "" {
		if _, err := os.Stat(sqlitePath); err != nil {
			return nil, fmt.Errorf("sqlite dump not found: %w", err)
		}
		return database.GetSqliteDBStandalone(sqlitePath)
	}

	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	return db, nil
}

// exportSession writes one session and returns the file path.
func exportSession(db *gorm.DB, sessionID, outDir string, compress bool, projector *geo.Projector) (string, error) {
	rec, err := database.LoadSession(db, sessionID)
	if err != nil {
		return "", err
	}

	sess, err := convert.SessionToCore(rec.Session)
	if err != nil {
		return "", fmt.Errorf("session %s: %w", sessionID, err)
	}

	frames := make([]core.Snapshot, 0, len(rec.Frames))
	for _, f := range rec.Frames {
		snap, err := convert.FrameToCore(f)
		if err != nil {
			return "", fmt.Errorf("session %s tick %d: %w", sessionID, f.Tick, err)
		}
		frames = append(frames, snap)
	}

	warnings := make([]core.WarningEvent, 0, len(rec.Warnings))
	for _, w := range rec.Warnings {
		warnings = append(warnings, convert.WarningEventToCore(w))
	}

	export := v1.Build(&v1.SessionData{
		Session:   &sess,
		Frames:    frames,
		Warnings:  warnings,
		Projector: projector,
	})

	path := filepath.Join(outDir, memory.ExportFileName(&sess, compress))
	if err := memory.WriteExport(path, export, compress); err != nil {
		return "", err
	}
	return path, nil
}
