package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/autodash/simulator/internal/storage/memory/export/v1"
	"github.com/autodash/simulator/pkg/core"
)

// GetExportedFilePath returns the path to the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata about the last export
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}

// BuildExport builds the export for the current session without writing it.
func (b *Backend) BuildExport() (v1.Export, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return v1.Export{}, false
	}
	return b.buildExport(), true
}

func (b *Backend) buildExport() v1.Export {
	return v1.Build(&v1.SessionData{
		Session:   b.session,
		Frames:    b.frames,
		Warnings:  b.warnings,
		Projector: b.projector,
	})
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(b.session, b.cfg.CompressOutput))
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := WriteExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = core.UploadMetadata{
		SessionID:   b.session.ID,
		VehicleName: b.session.VehicleName,
		Tag:         b.session.Tag,
	}
	if !b.session.EndTime.IsZero() {
		b.lastExportMetadata.Duration = b.session.EndTime.Sub(b.session.StartTime).Seconds()
	}
	return nil
}

// ExportFileName is <vehicle>_<start>_<short id>.json, with .gz appended when compressed.
func ExportFileName(s *core.Session, compress bool) string {
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(s.VehicleName)
	if name == "" {
		name = "session"
	}
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	filename := fmt.Sprintf("%s_%s_%s.json", name, s.StartTime.Format("20060102_150405"), id)
	if compress {
		filename += ".gz"
	}
	return filename
}

// WriteExport encodes export to path, gzipping it when compress is set.
func WriteExport(path string, export v1.Export, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return encode(f, export)
	}
	gzWriter := gzip.NewWriter(f)
	if err := encode(gzWriter, export); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func encode(w io.Writer, export v1.Export) error {
	if err := json.NewEncoder(w).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
