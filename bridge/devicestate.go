package bridge

import (
	"fmt"
	"time"

	"github.com/meermanr/timeguard-gateway/codec"
)

const totalScheduleSlots = 10

// deviceState is the Bridge-side per-device cache: a string-keyed
// parameter map plus the last-known ScheduleInfo per schedule_id. It is
// owned exclusively by the Bridge's loop.
type deviceState struct {
	parameters       map[string]string
	schedules        map[uint8]codec.ScheduleInfoParams
	activeScheduleID *uint8
	lastCommand      time.Time
	codeVersionKnown bool
	discoveryDone    bool
}

func newDeviceState(now time.Time) *deviceState {
	return &deviceState{
		parameters:  make(map[string]string),
		schedules:   make(map[uint8]codec.ScheduleInfoParams),
		lastCommand: now,
	}
}

// set stores value for key and reports whether it differs from the value
// previously stored, a missing key counting as "" (used to publish only
// the updated-parameter subset).
func (d *deviceState) set(key, value string) bool {
	if d.parameters[key] == value {
		return false
	}
	d.parameters[key] = value
	return true
}

func (d *deviceState) allSchedulesKnown() bool {
	return len(d.schedules) >= totalScheduleSlots
}

// scheduleOptions lists "#<1-based-id>: <name>" for every non-empty-named
// schedule, in ascending schedule_id order.
func (d *deviceState) scheduleOptions() []string {
	var opts []string
	for id := uint8(0); id < totalScheduleSlots; id++ {
		s, ok := d.schedules[id]
		if !ok || s.Name == "" {
			continue
		}
		opts = append(opts, fmt.Sprintf("#%d: %s", id+1, s.Name))
	}
	return opts
}

// activeScheduleString renders the currently-selected schedule as
// "#<1-based-id>: <name>", once both the active id and all schedules are
// known.
func (d *deviceState) activeScheduleString() (string, bool) {
	if d.activeScheduleID == nil || !d.allSchedulesKnown() {
		return "", false
	}
	s, ok := d.schedules[*d.activeScheduleID]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("#%d: %s", *d.activeScheduleID+1, s.Name), true
}

// sundayMidnight returns the most recent 00:00 of a Sunday, in local time,
// at or before now.
func sundayMidnight(now time.Time) time.Time {
	local := now.Local()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	daysSinceSunday := int(midnight.Weekday())
	return midnight.AddDate(0, 0, -daysSinceSunday)
}

// boostDurationLeft formats max(0, finishTime - now) as "HH:MM", where
// finishTime is minutes-from-last-Sunday-midnight.
func boostDurationLeft(b codec.Boost, now time.Time) string {
	finish := sundayMidnight(now).Add(time.Duration(b.ExpectedFinishTime()) * time.Minute)
	remaining := finish.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	totalMinutes := int(remaining.Minutes())
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}
