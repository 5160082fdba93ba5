package selection

import (
	"errors"
	"sync"
	"testing"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
)

func newController(t *testing.T) *Controller {
	t.Helper()
	r, cat := setup(t, threeDays)
	c, err := NewController(r, cat, Default(r.Tabs))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestController_Events(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   Selection
	}{
		{
			name:   "date change resets run",
			events: []Event{SelectRun{Index: 3}, SelectDate{Index: 1}},
			want:   Selection{DateIndex: 1, RunIndex: 0, Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "same date keeps run",
			events: []Event{SelectRun{Index: 2}, SelectDate{Index: 0}},
			want:   Selection{DateIndex: 0, RunIndex: 2, Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "step date clamps",
			events: []Event{StepDate{Delta: 1}, StepDate{Delta: 1}, StepDate{Delta: 1}},
			want:   Selection{DateIndex: 2, Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "step date below zero",
			events: []Event{StepDate{Delta: -1}},
			want:   Selection{Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "step hour clamps at horizon",
			events: []Event{SelectHour{Hour: 119}, StepHour{Delta: 1}, StepHour{Delta: 1}},
			want:   Selection{Hour: 120, Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "step hour clamps at zero",
			events: []Event{StepHour{Delta: -1}},
			want:   Selection{Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "UKV kept within horizon",
			events: []Event{SelectVariant{Variant: forecast.UKV}, SelectHour{Hour: 36}},
			want:   Selection{Hour: 36, Tab: "Precipitation", Variant: forecast.UKV, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "UKV replaced past horizon and stays replaced",
			events: []Event{SelectVariant{Variant: forecast.UKV}, SelectHour{Hour: 37}, SelectHour{Hour: 3}},
			want:   Selection{Hour: 3, Tab: "Precipitation", Variant: forecast.Euro4, Observation: "Cloud/EHEA11"},
		},
		{
			name:   "tab and observation",
			events: []Event{SelectTab{Name: "Cloud"}, SelectObservation{Key: "IR/EIEA51"}},
			want:   Selection{Tab: "Cloud", Variant: forecast.Euro4, Observation: "IR/EIEA51"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t)
			for _, e := range tt.events {
				if _, err := c.Apply(e); err != nil {
					t.Fatalf("Apply(%#v): %v", e, err)
				}
			}
			if got := c.Selection(); got != tt.want {
				t.Errorf("selection = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestController_RejectedEventKeepsState(t *testing.T) {
	c := newController(t)
	if _, err := c.Apply(SelectHour{Hour: 10}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	before := c.View()

	for _, e := range []Event{SelectHour{Hour: 500}, SelectDate{Index: 9}, SelectRun{Index: 7}, SelectTab{Name: "Wind"}, SelectVariant{Variant: "GFS"}} {
		if _, err := c.Apply(e); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Apply(%#v) err = %v, want ErrInvalidInput", e, err)
		}
	}
	if after := c.View(); after.Label != before.Label || after.Selection != before.Selection {
		t.Errorf("view changed after rejected events: %+v", after.Selection)
	}
}

func TestController_Subscribe(t *testing.T) {
	c := newController(t)
	var got []string
	cancel := c.Subscribe(func(v View) { got = append(got, v.Label) })

	c.Apply(StepHour{Delta: 1})
	c.Apply(StepHour{Delta: 1})
	cancel()
	c.Apply(StepHour{Delta: 1})

	want := []string{"Tuesday 0100Z 23/08/2016 (t+1h)", "Tuesday 0200Z 23/08/2016 (t+2h)"}
	if len(got) != len(want) {
		t.Fatalf("got %d views, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("view %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestController_LastEventWins(t *testing.T) {
	c := newController(t)
	var mu sync.Mutex
	var last View
	c.Subscribe(func(v View) {
		mu.Lock()
		last = v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Apply(StepHour{Delta: 1})
		}()
	}
	wg.Wait()

	if c.Selection().Hour != 50 {
		t.Errorf("hour = %d, want 50", c.Selection().Hour)
	}
	mu.Lock()
	defer mu.Unlock()
	if last.Selection != c.Selection() {
		t.Errorf("last published %+v, current %+v", last.Selection, c.Selection())
	}
}

func TestController_ReplaceCatalogue(t *testing.T) {
	c := newController(t)
	c.Apply(SelectDate{Index: 1})
	c.Apply(SelectRun{Index: 1}) // 20160824 12Z

	grown, err := catalogue.ParseJSON([]byte(`{"20160824":"00Z,06Z,12Z","20160825":"00Z"}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	v, err := c.Apply(ReplaceCatalogue{Catalogue: grown})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v.Date != "20160824" || v.ModelRun != "12" {
		t.Errorf("after replace: %s %s, want 20160824 12", v.Date, v.ModelRun)
	}

	moved, _ := catalogue.ParseJSON([]byte(`{"20160901":"00Z","20160902":"00Z,12Z"}`))
	v, err = c.Apply(ReplaceCatalogue{Catalogue: moved})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v.Date != "20160902" || v.ModelRun != "00" {
		t.Errorf("missing date should fall back to latest: %s %s", v.Date, v.ModelRun)
	}

	empty, _ := catalogue.New(nil)
	if _, err := c.Apply(ReplaceCatalogue{Catalogue: empty}); !errors.Is(err, ErrNoData) {
		t.Errorf("empty catalogue err = %v", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		in   string
		want Event
	}{
		{`{"type":"step_hour","delta":-1}`, StepHour{Delta: -1}},
		{`{"type":"select_hour","hour":12}`, SelectHour{Hour: 12}},
		{`{"type":"select_date","index":2}`, SelectDate{Index: 2}},
		{`{"type":"step_date","delta":1}`, StepDate{Delta: 1}},
		{`{"type":"select_run","index":1}`, SelectRun{Index: 1}},
		{`{"type":"select_tab","name":"Cloud"}`, SelectTab{Name: "Cloud"}},
		{`{"type":"select_variant","variant":"UKV"}`, SelectVariant{Variant: forecast.UKV}},
		{`{"type":"select_observation","key":"Vis/EVEB71"}`, SelectObservation{Key: "Vis/EVEB71"}},
	}
	for _, tt := range tests {
		got, err := DecodeEvent([]byte(tt.in))
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{`{"type":"reboot"}`, `not json`} {
		if _, err := DecodeEvent([]byte(bad)); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: err = %v", bad, err)
		}
	}
}
