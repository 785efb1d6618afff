package clock

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

// Snapshot is one reading of the local wall clock, broken into the forms the
// rest of the panel consumes.
type Snapshot struct {
	// DateISO is the local date as YYYY-MM-DD
	DateISO string
	// HHMM is the local time as HH:MM in 24-hour format
	HHMM string
	// DateShort is the local date as M/D without leading zeros
	DateShort string
	// MinuteOfDay is hour*60+minute in local time
	MinuteOfDay int
}

// Source reads the local wall clock
type Source struct {
	clock clockwork.Clock
}

// NewSource creates a clock source backed by the given clock
func NewSource(clk clockwork.Clock) *Source {
	return &Source{clock: clk}
}

// Now returns a snapshot of the current local time
func (s *Source) Now() Snapshot {
	t := s.clock.Now().Local()
	return Snapshot{
		DateISO:     t.Format("2006-01-02"),
		HHMM:        t.Format("15:04"),
		DateShort:   fmt.Sprintf("%d/%d", int(t.Month()), t.Day()),
		MinuteOfDay: t.Hour()*60 + t.Minute(),
	}
}

// Schedule maps a minute of the local day to a display brightness. The dim
// window runs from Start to End and may wrap past midnight.
type Schedule struct {
	Start  int
	End    int
	Dim    int
	Bright int
}

// Level returns the brightness percentage for the given minute of day
func (s Schedule) Level(minuteOfDay int) int {
	if s.inDimWindow(minuteOfDay) {
		return s.Dim
	}
	return s.Bright
}

func (s Schedule) inDimWindow(minuteOfDay int) bool {
	if s.Start == s.End {
		return false
	}
	if s.Start < s.End {
		return minuteOfDay >= s.Start && minuteOfDay < s.End
	}
	// Window wraps midnight
	return minuteOfDay >= s.Start || minuteOfDay < s.End
}
