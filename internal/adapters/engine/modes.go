package engine

import (
	"strings"

	perr "otp4gb/internal/platform/errors"
)

// Mode is a single travel mode token understood by the engine
type Mode string

// Mode tokens accepted in configuration and forwarded to the engine
const (
	ModeTransit Mode = "TRANSIT"
	ModeBus     Mode = "BUS"
	ModeRail    Mode = "RAIL"
	ModeTram    Mode = "TRAM"
	ModeSubway  Mode = "SUBWAY"
	ModeFerry   Mode = "FERRY"
	ModeWalk    Mode = "WALK"
	ModeBicycle Mode = "BICYCLE"
	ModeCar     Mode = "CAR"
)

// walkPairMode keeps isochrone requests valid: the engine rejects a
// standalone WALK so it is always sent with a second, irrelevant mode
const walkPairMode = ModeFerry

var knownModes = map[Mode]bool{
	ModeTransit: true,
	ModeBus:     true,
	ModeRail:    true,
	ModeTram:    true,
	ModeSubway:  true,
	ModeFerry:   true,
	ModeWalk:    true,
	ModeBicycle: true,
	ModeCar:     true,
}

// ParseMode validates a config token, case-insensitively
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !knownModes[m] {
		return "", perr.Validationf("unknown mode %q", s)
	}
	return m, nil
}

// ModeLabel renders a combination for file names and log lines
// (underscore-joined, e.g. BUS_WALK)
func ModeLabel(modes []Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, "_")
}

// modesParam renders the comma-separated modes query value for plan
// requests
func modesParam(modes []Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

// isochroneModesParam renders the modes value for isochrone requests,
// expanding each WALK token with the pair mode
func isochroneModesParam(modes []Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		if m == ModeWalk {
			parts[i] = string(ModeWalk) + "," + string(walkPairMode)
			continue
		}
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}
