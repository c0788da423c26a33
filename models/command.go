package models

import "github.com/shopspring/decimal"

// CommandKind is the closed set of operations the conversational front-end
// can request. Button action strings are decoded into a Command exactly once
// at the boundary.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandJoin
	CommandLeave
	CommandReserve
	CommandStartSession
	CommandStopSession
	CommandStatus
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoin:
		return "join"
	case CommandLeave:
		return "leave"
	case CommandReserve:
		return "reserve"
	case CommandStartSession:
		return "start_session"
	case CommandStopSession:
		return "stop_session"
	case CommandStatus:
		return "status"
	}
	return "unknown"
}

type Command struct {
	Kind       CommandKind
	UserID     string
	StationID  string
	TTLMinutes int
	Reason     string
	MeterValue decimal.Decimal
}
