package forecast

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lox/fiat/internal/catalogue"
)

func testCatalogue(t *testing.T, data string) *catalogue.Catalogue {
	t.Helper()
	c, err := catalogue.ParseJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	return c
}

const fourDays = `{"20160823":"00Z,06Z,12Z,18Z","20160824":"00Z,06Z,12Z,18Z","20160825":"00Z,06Z,12Z,18Z","20160826":"00Z,06Z"}`

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func TestResolveTime_ZuluAndDayOffset(t *testing.T) {
	cat := testCatalogue(t, fourDays)
	for _, run := range []int{0, 6, 12, 18} {
		for h := 0; h <= MaxHour; h++ {
			info, err := ResolveTime(cat, TimeRequest{
				ModelRun: fmt.Sprintf("%02d", run),
				Offset:   fmt.Sprint(h),
			}, Options{Now: fixedNow})
			if err != nil {
				t.Fatalf("run %02d t+%d: %v", run, h, err)
			}
			if want := fmt.Sprintf("%02d", (run+h)%24); info.Zulu != want {
				t.Errorf("run %02d t+%d: Zulu = %s, want %s", run, h, info.Zulu, want)
			}
			if want := (run + h) / 24; info.DayOffset != want {
				t.Errorf("run %02d t+%d: DayOffset = %d, want %d", run, h, info.DayOffset, want)
			}
			if info.Clock != info.Zulu+"00" {
				t.Errorf("run %02d t+%d: Clock = %s, want %s00", run, h, info.Clock, info.Zulu)
			}
		}
	}
}

func TestResolveTime_NextDay(t *testing.T) {
	cat := testCatalogue(t, fourDays)
	info, err := ResolveTime(cat, TimeRequest{ModelRun: "18", Offset: "10"}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("ResolveTime: %v", err)
	}
	if info.Zulu != "04" || info.DayOffset != 1 {
		t.Errorf("Zulu = %s DayOffset = %d, want 04 and 1", info.Zulu, info.DayOffset)
	}
	if info.ForecastDate != "20160824" || info.ObservationDate != "20160824" {
		t.Errorf("ForecastDate = %s ObservationDate = %s, want 20160824 for both", info.ForecastDate, info.ObservationDate)
	}
	if info.Extrapolated {
		t.Error("catalogue date should not be marked extrapolated")
	}
	if want := "Wednesday 0400Z 24/08/2016 (t+10h)"; info.Label != want {
		t.Errorf("Label = %q, want %q", info.Label, want)
	}
}

func TestResolveTime_Weekday(t *testing.T) {
	cat := testCatalogue(t, fourDays)
	info, err := ResolveTime(cat, TimeRequest{ModelRun: "00", Offset: "0"}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("ResolveTime: %v", err)
	}
	if info.Weekday != "Tuesday" {
		t.Errorf("Weekday = %s, want Tuesday", info.Weekday)
	}
	if want := "Tuesday 0000Z 23/08/2016 (t+0h)"; info.Label != want {
		t.Errorf("Label = %q, want %q", info.Label, want)
	}
}

func TestResolveTime_ExtrapolatesPastCatalogue(t *testing.T) {
	cat := testCatalogue(t, `{"20160824":"00Z,06Z,12Z,18Z"}`)

	tests := []struct {
		name  string
		basis Basis
		want  string
	}{
		{"from today", FromToday, "20261018"},
		{"from catalogue", FromCatalogue, "20160828"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ResolveTime(cat, TimeRequest{ModelRun: "06", Offset: "90"}, Options{Now: fixedNow, Basis: tt.basis})
			if err != nil {
				t.Fatalf("ResolveTime: %v", err)
			}
			if info.DayOffset != 4 {
				t.Errorf("DayOffset = %d, want 4", info.DayOffset)
			}
			if !info.Extrapolated {
				t.Error("expected extrapolation")
			}
			if info.HasObservations() || info.ObservationDate != "" {
				t.Errorf("ObservationDate = %q, want none", info.ObservationDate)
			}
			if info.ForecastDate != tt.want {
				t.Errorf("ForecastDate = %s, want %s", info.ForecastDate, tt.want)
			}
		})
	}
}

func TestResolveTime_LabelClock(t *testing.T) {
	cat := testCatalogue(t, fourDays)
	info, err := ResolveTime(cat, TimeRequest{ModelRun: "06", Offset: "3", HourLabel: "+3 hrs - 0900"}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("ResolveTime: %v", err)
	}
	if info.Clock != "0900" {
		t.Errorf("Clock = %s, want 0900", info.Clock)
	}

	// The clock is taken from the label as given, not recomputed.
	_, err = ResolveTime(cat, TimeRequest{ModelRun: "06", Offset: "3", HourLabel: "+3 hrs"}, Options{Now: fixedNow})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("label without clock: err = %v, want ErrInvalidInput", err)
	}
}

func TestResolveTime_InvalidInput(t *testing.T) {
	cat := testCatalogue(t, fourDays)
	tests := []struct {
		name string
		req  TimeRequest
	}{
		{"non-numeric run", TimeRequest{ModelRun: "ab", Offset: "0"}},
		{"empty run", TimeRequest{ModelRun: "", Offset: "0"}},
		{"run past 23", TimeRequest{ModelRun: "24", Offset: "0"}},
		{"non-numeric offset", TimeRequest{ModelRun: "00", Offset: "x5"}},
		{"negative offset", TimeRequest{ModelRun: "00", Offset: "-1"}},
		{"offset past horizon", TimeRequest{ModelRun: "00", Offset: "121"}},
		{"date index", TimeRequest{DateIndex: 9, ModelRun: "00", Offset: "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ResolveTime(cat, tt.req, Options{Now: fixedNow}); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestResolveTime_Deterministic(t *testing.T) {
	cat := testCatalogue(t, fourDays)
	req := TimeRequest{DateIndex: 2, ModelRun: "12", Offset: "77"}
	a, errA := ResolveTime(cat, req, Options{Now: fixedNow})
	b, errB := ResolveTime(cat, req, Options{Now: fixedNow})
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Errorf("resolving twice differed:\n%+v\n%+v", a, b)
	}
}

func TestParseBasis(t *testing.T) {
	for in, want := range map[string]Basis{"": FromToday, "today": FromToday, "catalogue": FromCatalogue} {
		got, err := ParseBasis(in)
		if err != nil || got != want {
			t.Errorf("ParseBasis(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseBasis("tomorrow"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ParseBasis(tomorrow) err = %v", err)
	}
}

func TestHourButtons(t *testing.T) {
	buttons := HourButtons(18)
	if len(buttons) != MaxHour+1 {
		t.Fatalf("len = %d, want %d", len(buttons), MaxHour+1)
	}
	if buttons[0].Label != "+0 hrs - 1800" || !buttons[0].Header {
		t.Errorf("first button = %+v", buttons[0])
	}
	if buttons[10].Label != "+10 hrs - 0400" || buttons[10].Header || buttons[10].Section != 0 {
		t.Errorf("button 10 = %+v", buttons[10])
	}
	if !buttons[12].Header || buttons[12].Section != 1 {
		t.Errorf("button 12 = %+v", buttons[12])
	}
	if buttons[120].Section != 10 || !buttons[120].Header {
		t.Errorf("last button = %+v", buttons[120])
	}
}
