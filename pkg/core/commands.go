package core

// Command names routed through the dispatcher.
const (
	CmdAutopilotToggle = ":AUTOPILOT:TOGGLE:"
	CmdDriveToggle     = ":DRIVE:TOGGLE:"
	CmdLaneChange      = ":LANE:CHANGE:"
	CmdSnapshot        = ":SNAPSHOT:"
	CmdSnapshotDump    = ":SNAPSHOT:DUMP:"
	CmdWarnings        = ":WARNINGS:"
	CmdSessionStart    = ":SESSION:START:"
	CmdSessionEnd      = ":SESSION:END:"
	CmdRecordSnapshot  = ":RECORD:SNAPSHOT:"
	CmdRecordWarning   = ":RECORD:WARNING:"
)
