package entity

import "time"

type ClockMode int

const (
	// ClockUnset leaves the device clock alone.
	ClockUnset ClockMode = iota
	// ClockManual sets the clock to a fixed time and date.
	ClockManual
	// ClockNTP synchronizes the clock with NTP servers.
	ClockNTP
)

func (c ClockMode) String() string {
	switch c {
	case ClockManual:
		return "manual"
	case ClockNTP:
		return "ntp"
	default:
		return "unset"
	}
}

type ClockSetting struct {
	Mode ClockMode
	// Time is set only in manual mode.
	Time time.Time
	// Raw is the value as the user wrote it. The device CLI accepts it as is.
	Raw      string
	Timezone string
}
