package player

import (
	"fmt"
	"strconv"
	"strings"
)

type Position string

const (
	PositionGoalkeeper Position = "GK"
	PositionDefender   Position = "DEF"
	PositionMidfielder Position = "MID"
	PositionForward    Position = "FWD"
)

var AllPositions = map[Position]struct{}{
	PositionGoalkeeper: {},
	PositionDefender:   {},
	PositionMidfielder: {},
	PositionForward:    {},
}

// PositionFromElementType maps the provider's numeric element type.
func PositionFromElementType(elementType int) (Position, bool) {
	switch elementType {
	case 1:
		return PositionGoalkeeper, true
	case 2:
		return PositionDefender, true
	case 3:
		return PositionMidfielder, true
	case 4:
		return PositionForward, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusAvailable   Status = "a"
	StatusDoubtful    Status = "d"
	StatusInjured     Status = "i"
	StatusOnLoan      Status = "n"
	StatusSuspended   Status = "s"
	StatusUnavailable Status = "u"
)

func (s Status) Describe() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusDoubtful:
		return "doubtful"
	case StatusInjured:
		return "injured"
	case StatusOnLoan:
		return "not in squad"
	case StatusSuspended:
		return "suspended"
	case StatusUnavailable:
		return "unavailable"
	default:
		return string(s)
	}
}

// Player is the monitor's view of one provider element.
type Player struct {
	ID        int64
	WebName   string
	TeamID    int64
	Position  Position
	Price     int // tenths of a million
	Status    Status
	News      string
	Ownership float64 // share of tracked managers starting this player, percent
}

// FormatPrice renders a tenths-of-a-million price as e.g. "5.5".
func FormatPrice(tenths int) string {
	whole := tenths / 10
	frac := tenths % 10
	if frac < 0 {
		frac = -frac
	}
	return strconv.Itoa(whole) + "." + strconv.Itoa(frac)
}

// FormatOwnership renders an ownership share as e.g. "45.2%".
func FormatOwnership(pct float64) string {
	return strings.TrimSpace(fmt.Sprintf("%.1f%%", pct))
}
