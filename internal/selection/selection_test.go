package selection

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/plots"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

const threeDays = `{"20160823":"00Z,06Z,12Z,18Z","20160824":"00Z,12Z","20160825":"00Z"}`

func setup(t *testing.T, data string) (*Resolver, *catalogue.Catalogue) {
	t.Helper()
	cat, err := catalogue.ParseJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	r := &Resolver{
		Tabs:  plots.DefaultTable(),
		Bases: plots.DefaultBases,
		Now:   func() time.Time { return fixedNow },
	}
	return r, cat
}

func TestResolve_Default(t *testing.T) {
	r, cat := setup(t, threeDays)
	v, err := r.Resolve(cat, Default(r.Tabs))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Tab.Name != "Precipitation" || v.Date != "20160823" || v.ModelRun != "00" {
		t.Errorf("view = tab %s date %s run %s", v.Tab.Name, v.Date, v.ModelRun)
	}
	if v.Label != "Tuesday 0000Z 23/08/2016 (t+0h)" {
		t.Errorf("Label = %q", v.Label)
	}
	if v.Availability.Effective != forecast.Euro4 || !v.Availability.ShortHorizonSelectable {
		t.Errorf("Availability = %+v", v.Availability)
	}
	if len(v.URLs) != 4 || len(v.Hours) != forecast.MaxHour+1 {
		t.Errorf("%d urls, %d hours", len(v.URLs), len(v.Hours))
	}
	if !reflect.DeepEqual(v.Runs, []string{"00", "06", "12", "18"}) {
		t.Errorf("Runs = %v", v.Runs)
	}
	if v.Observations != nil {
		t.Error("precipitation tab should not offer satellite types")
	}
}

func TestResolve_WritesBackEffectiveVariant(t *testing.T) {
	r, cat := setup(t, threeDays)
	sel := Selection{Tab: "Temperature", Hour: 48, Variant: forecast.UKV}
	v, err := r.Resolve(cat, sel)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Selection.Variant != forecast.Euro4 {
		t.Errorf("stored variant = %s, want Euro4", v.Selection.Variant)
	}
	if v.Availability.ShortHorizonSelectable {
		t.Error("UKV should be disabled past t+36")
	}
	if !strings.Contains(v.URLs["temperatureFcstImg"], "/Forecasts/Euro4/Temperature/") {
		t.Errorf("model URL = %q", v.URLs["temperatureFcstImg"])
	}
	if v.Plots[1].Title != "Euro4 Forecast" {
		t.Errorf("model title = %q", v.Plots[1].Title)
	}
	// The input value is not modified.
	if sel.Variant != forecast.UKV {
		t.Error("Resolve changed its argument")
	}
}

func TestResolve_Errors(t *testing.T) {
	r, cat := setup(t, threeDays)
	tests := []struct {
		name string
		sel  Selection
	}{
		{"unknown tab", Selection{Tab: "Wind"}},
		{"date index", Selection{DateIndex: 3}},
		{"run index", Selection{DateIndex: 2, RunIndex: 1}},
		{"hour", Selection{Hour: 121}},
		{"negative hour", Selection{Hour: -1}},
		{"observation", Selection{Observation: "Radar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Resolve(cat, tt.sel); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	empty, _ := catalogue.New(nil)
	if _, err := r.Resolve(empty, Selection{}); !errors.Is(err, ErrNoData) {
		t.Errorf("empty catalogue err = %v, want ErrNoData", err)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r, cat := setup(t, threeDays)
	sel := Selection{DateIndex: 1, RunIndex: 1, Hour: 70, Tab: "Cloud", Variant: forecast.UKV, Observation: "IR/EIEA51"}
	a, errA := r.Resolve(cat, sel)
	b, errB := r.Resolve(cat, sel)
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("resolving the same selection twice gave different views")
	}
}

func TestQuery_RoundTrip(t *testing.T) {
	r, cat := setup(t, threeDays)
	sel := Selection{DateIndex: 1, RunIndex: 1, Hour: 17, Tab: "Cloud", Variant: forecast.UKV, Observation: "Vis/EVEB71"}
	q := sel.Query(cat)
	if q.Get("date") != "20160824" || q.Get("run") != "12" {
		t.Errorf("query = %s", q.Encode())
	}
	got, err := FromQuery(cat, r.Tabs, Default(r.Tabs), q)
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	if got != sel {
		t.Errorf("round trip = %+v, want %+v", got, sel)
	}
}

func TestFromQuery_KeepsBase(t *testing.T) {
	r, cat := setup(t, threeDays)
	base := Selection{DateIndex: 0, RunIndex: 2, Hour: 5, Tab: "Temperature", Variant: forecast.UKV}
	got, err := FromQuery(cat, r.Tabs, base, map[string][]string{"hour": {"6"}})
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	want := base
	want.Hour = 6
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFromQuery_Invalid(t *testing.T) {
	r, cat := setup(t, threeDays)
	for _, raw := range []string{"date=20990101", "date=20160825&run=12", "hour=121", "hour=x", "tab=Wind", "model=gfs", "obs=Radar"} {
		q, _ := url.ParseQuery(raw)
		if _, err := FromQuery(cat, r.Tabs, Default(r.Tabs), q); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", raw, err)
		}
	}
}
