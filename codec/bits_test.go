package codec

import "testing"

func TestDeviceStateRoundTrip(t *testing.T) {
	tests := []DeviceState{
		{SwitchState: SwitchStateOn, LoadDetected: true, AdvanceMode: AdvanceOn, LoadWasDetectedPreviously: true},
		{SwitchState: SwitchStateOff, LoadDetected: false, AdvanceMode: AdvanceOff, LoadWasDetectedPreviously: false},
	}
	for _, want := range tests {
		got := decodeDeviceState(want.encode())
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestBoostByteSwap(t *testing.T) {
	// boost_type=2 (TWO_HOURS), minutes_from_sunday=100 packed MSB-first
	// into a big-endian word, then the two bytes swapped on the wire.
	want := Boost{BoostType: BoostTwoHours, MinutesFromSunday: 100}
	raw := want.encode()
	got := decodeBoost(raw)
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestBoostDerivedFields(t *testing.T) {
	b := Boost{BoostType: BoostOneHour, MinutesFromSunday: 500}
	if got := b.DurationInMinutes(); got != 60 {
		t.Errorf("DurationInMinutes = %d, want 60", got)
	}
	if got := b.ExpectedFinishTime(); got != 560 {
		t.Errorf("ExpectedFinishTime = %d, want 560", got)
	}
}

func TestScheduleTimeRoundTrip(t *testing.T) {
	want := ScheduleTime{Enabled: true, MinutesFromMidnight: 1439}
	got := decodeScheduleTime(want.encode())
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	want := Schedule{
		Start:   ScheduleTime{Enabled: true, MinutesFromMidnight: 360},
		End:     ScheduleTime{Enabled: true, MinutesFromMidnight: 1020},
		Repeat:  RepeatMonday | RepeatTuesday | RepeatWednesday,
		Unknown: 0x00,
	}
	got := decodeSchedule(want.encode())
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
