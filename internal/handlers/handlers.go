// Package handlers answers operator commands: vehicle controls and state queries.
package handlers

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/pkg/core"
	"github.com/davecgh/go-spew/spew"
)

// Controller is the part of the simulation clock operators may touch.
type Controller interface {
	ToggleAutopilot()
	ToggleDriving()
	RequestLaneChange(core.LaneDirection) error
	Snapshot() core.Snapshot
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Controller Controller
	Logger     *slog.Logger
	// DumpOut receives :SNAPSHOT:DUMP: output. Nil only returns it.
	DumpOut io.Writer
}

// Service provides handler methods for operator commands.
type Service struct {
	deps   Dependencies
	dumper *spew.ConfigState
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps: deps,
		dumper: &spew.ConfigState{
			Indent:                  "  ",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		},
	}
}

// Register wires the control and query commands into d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(core.CmdAutopilotToggle, s.handleAutopilotToggle, dispatcher.Logged())
	d.Register(core.CmdDriveToggle, s.handleDriveToggle, dispatcher.Logged())
	d.Register(core.CmdLaneChange, s.handleLaneChange, dispatcher.Logged())
	d.Register(core.CmdSnapshot, s.handleSnapshot)
	d.Register(core.CmdSnapshotDump, s.handleSnapshotDump)
	d.Register(core.CmdWarnings, s.handleWarnings)
}

func (s *Service) handleAutopilotToggle(e dispatcher.Event) (any, error) {
	s.deps.Controller.ToggleAutopilot()
	return "ok", nil
}

func (s *Service) handleDriveToggle(e dispatcher.Event) (any, error) {
	s.deps.Controller.ToggleDriving()
	return "ok", nil
}

func (s *Service) handleLaneChange(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("lane change expects 1 arg, got %d: %w", len(e.Args), core.ErrInvalidLaneDirection)
	}
	dir, err := core.ParseLaneDirection(e.Args[0])
	if err != nil {
		return nil, err
	}
	if err := s.deps.Controller.RequestLaneChange(dir); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Service) handleSnapshot(e dispatcher.Event) (any, error) {
	snap := s.deps.Controller.Snapshot()
	s.deps.Logger.Info("snapshot",
		"tick", snap.Tick,
		"gear", snap.Gear,
		"autopilot", snap.Controls.AutopilotEngaged,
		"speed", snap.Vehicle.Speed,
		"battery", snap.Vehicle.Battery,
		"gps", snap.Vehicle.GPSBars,
		"lane", snap.Vehicle.LaneOffset,
		"warnings", len(snap.Warnings),
	)
	return snap, nil
}

func (s *Service) handleSnapshotDump(e dispatcher.Event) (any, error) {
	snap := s.deps.Controller.Snapshot()
	out := s.dumper.Sdump(snap)
	if s.deps.DumpOut != nil {
		if _, err := io.WriteString(s.deps.DumpOut, out); err != nil {
			return nil, fmt.Errorf("writing dump: %w", err)
		}
	}
	return out, nil
}

func (s *Service) handleWarnings(e dispatcher.Event) (any, error) {
	snap := s.deps.Controller.Snapshot()
	for _, w := range snap.Warnings {
		s.deps.Logger.Warn(w.Message, "level", string(w.Level), "tick", snap.Tick)
	}
	return snap.Warnings, nil
}
