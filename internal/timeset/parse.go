// Package timeset sets the device clock before enrollment, either to a fixed time or with NTP.
package timeset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tupyy/ztp-bootstrap/internal/entity"
)

// DefaultTimezone is used when no timezone is given.
const DefaultTimezone = "PST8PDT"

var (
	ErrInvalidTimeDate = errors.New("invalid current time and date")
	ErrInvalidTimezone = errors.New("invalid timezone")

	// layouts accepted for the current time and date: hh:mm:ss mm/dd/yyyy and hh:mm:ss yyyy-mm-dd
	layouts = []string{
		"15:04:05 01/02/2006",
		"15:04:05 2006-01-02",
	}
)

// Parse reads the current time and date and the timezone given by the user.
// An empty value leaves the clock alone; "ntp" (any case) asks for NTP synchronization.
func Parse(currentTimeDate, timezone string) (entity.ClockSetting, error) {
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		tz = DefaultTimezone
	}

	// the timezone ends up in a cli command
	if strings.ContainsAny(tz, " \t\r\n;|&") {
		return entity.ClockSetting{}, fmt.Errorf("%w: '%s'", ErrInvalidTimezone, timezone)
	}

	raw := strings.Join(strings.Fields(currentTimeDate), " ")

	switch {
	case raw == "":
		return entity.ClockSetting{Mode: entity.ClockUnset, Timezone: tz}, nil
	case strings.EqualFold(raw, "ntp"):
		return entity.ClockSetting{Mode: entity.ClockNTP, Raw: raw, Timezone: tz}, nil
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return entity.ClockSetting{Mode: entity.ClockManual, Time: t, Raw: raw, Timezone: tz}, nil
		}
	}

	return entity.ClockSetting{}, fmt.Errorf("%w: '%s' must be 'hh:mm:ss mm/dd/yyyy', 'hh:mm:ss yyyy-mm-dd' or 'ntp'", ErrInvalidTimeDate, currentTimeDate)
}
