// Package parser turns operator console lines into dispatcher events.
package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/pkg/core"
)

// ErrEmptyLine is returned for blank input and comments.
var ErrEmptyLine = errors.New("empty line")

// aliases maps console words to dispatcher commands.
var aliases = map[string]string{
	"autopilot": core.CmdAutopilotToggle,
	"ap":        core.CmdAutopilotToggle,
	"drive":     core.CmdDriveToggle,
	"lane":      core.CmdLaneChange,
	"snapshot":  core.CmdSnapshot,
	"status":    core.CmdSnapshot,
	"dump":      core.CmdSnapshotDump,
	"warnings":  core.CmdWarnings,
	"start":     core.CmdSessionStart,
	"end":       core.CmdSessionEnd,
}

// Parser converts command lines to events.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewParser creates a Parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, now: time.Now}
}

// Parse reads one line. Lines starting with ':' are raw commands passed through
// with their remaining fields as args; anything else must be a known alias.
// Lane changes are validated here so the clock only sees left or right.
func (p *Parser) Parse(line string) (dispatcher.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return dispatcher.Event{}, ErrEmptyLine
	}

	var cmd string
	if strings.HasPrefix(fields[0], ":") {
		cmd = strings.ToUpper(fields[0])
		if !strings.HasSuffix(cmd, ":") {
			cmd += ":"
		}
	} else {
		var ok bool
		cmd, ok = aliases[strings.ToLower(fields[0])]
		if !ok {
			return dispatcher.Event{}, fmt.Errorf("%w: %s", dispatcher.ErrUnknownCommand, fields[0])
		}
	}
	args := fields[1:]

	if cmd == core.CmdLaneChange {
		if len(args) != 1 {
			return dispatcher.Event{}, fmt.Errorf("lane change takes one direction, got %d args: %w", len(args), core.ErrInvalidLaneDirection)
		}
		dir, err := core.ParseLaneDirection(args[0])
		if err != nil {
			return dispatcher.Event{}, err
		}
		args = []string{string(dir)}
	}

	return dispatcher.Event{
		Command:   cmd,
		Args:      args,
		Timestamp: p.now(),
	}, nil
}

// Sink receives parsed events.
type Sink func(dispatcher.Event) (any, error)

// Run parses r line by line and hands each event to sink until EOF or ctx is done.
// Bad lines are logged and skipped.
func (p *Parser) Run(ctx context.Context, r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		e, err := p.Parse(line)
		if errors.Is(err, ErrEmptyLine) {
			continue
		}
		if err != nil {
			p.logger.Warn("ignoring command", "line", line, "error", err)
			continue
		}
		if _, err := sink(e); err != nil {
			p.logger.Error("command failed", "command", e.Command, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading commands: %w", err)
	}
	return nil
}
