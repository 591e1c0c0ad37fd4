// Package storage defines the recording backends every tick's snapshot is
// fanned out to.
package storage

import "github.com/autodash/simulator/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error

	// Recording
	RecordSnapshot(s *core.Snapshot) error
	RecordWarningEvent(e *core.WarningEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the dashboard server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Nop discards everything. It stands in when no backend could be created.
type Nop struct{}

func (Nop) Init() error                                 { return nil }
func (Nop) Close() error                                { return nil }
func (Nop) StartSession(*core.Session) error            { return nil }
func (Nop) EndSession(*core.Session) error              { return nil }
func (Nop) RecordSnapshot(*core.Snapshot) error         { return nil }
func (Nop) RecordWarningEvent(*core.WarningEvent) error { return nil }
