package codec

import "testing"

func TestCodeVersionRoundTrip(t *testing.T) {
	want := CodeVersionParams{CodeVersion: "v1.2.3"}
	encoded := want.encode()
	if len(encoded) != codeVersionWidth {
		t.Fatalf("encoded length = %d, want %d", len(encoded), codeVersionWidth)
	}
	got, err := decodeCodeVersion(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestScheduleInfoRoundTrip(t *testing.T) {
	want := ScheduleInfoParams{
		ScheduleID: 3,
		Name:       "Weekday heating",
	}
	want.Schedules[0] = Schedule{
		Start:  ScheduleTime{Enabled: true, MinutesFromMidnight: 360},
		End:    ScheduleTime{Enabled: true, MinutesFromMidnight: 480},
		Repeat: RepeatMonday | RepeatTuesday | RepeatWednesday | RepeatThursday | RepeatFriday,
	}
	encoded := want.encode()
	if len(encoded) != scheduleInfoSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), scheduleInfoSize)
	}
	got, err := decodeScheduleInfo(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	gotParams := got.(ScheduleInfoParams)
	if gotParams != want {
		t.Errorf("round trip = %+v, want %+v", gotParams, want)
	}
}

func TestSetScheduleNameRoundTrip(t *testing.T) {
	want := SetScheduleNameParams{ScheduleID: 9, Name: "Bathroom rail"}
	encoded := want.encode()
	got, err := decodeSetScheduleName(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestHolidayRoundTrip(t *testing.T) {
	want := HolidayParams{IsActive: true, Start: 1000, End: 2000}
	encoded := want.encode()
	got, err := decodeHoliday(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestRequireLenRejectsWrongLength(t *testing.T) {
	_, err := decodeEmpty([]byte{0x01})
	if err == nil {
		t.Fatal("expected error for non-empty EmptyParams payload")
	}
	var pe *ParseError
	if pe, _ = err.(*ParseError); pe == nil || pe.Kind != ErrLength {
		t.Errorf("err = %v, want ParseError{Kind: ErrLength}", err)
	}
}

func TestDecodeParamsFallsBackToRaw(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}
	got, err := decodeParams(MessageTypeID(0xFF), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rp, ok := got.(RawParams)
	if !ok {
		t.Fatalf("type = %T, want RawParams", got)
	}
	if string(rp) != string(raw) {
		t.Errorf("RawParams = % x, want % x", rp, raw)
	}
}
