package selection

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/plots"
)

var ErrNoData = errors.New("catalogue is empty")

// View is everything the dashboard shows for one selection.
type View struct {
	Selection    Selection               `json:"selection"`
	Date         string                  `json:"date"`
	ModelRun     string                  `json:"model_run"`
	Tab          plots.Tab               `json:"tab"`
	Time         forecast.TimeInfo       `json:"time"`
	Label        string                  `json:"label"`
	Availability forecast.Availability   `json:"availability"`
	Plots        []plots.Plot            `json:"plots"`
	URLs         map[string]string       `json:"urls"`
	Dates        []string                `json:"dates"`
	Runs         []string                `json:"runs"`
	Hours        []forecast.HourButton   `json:"hours"`
	Observations []plots.ObservationType `json:"observations,omitempty"`
}

// Resolver holds the configuration a selection is resolved against.
type Resolver struct {
	Tabs  *plots.Table
	Bases plots.Bases
	Basis forecast.Basis
	// Now is the clock used for dates past the end of the catalogue. Nil means time.Now.
	Now func() time.Time
}

// Resolve derives the view for sel. It has no side effects: the same catalogue and
// selection always give the same view.
//
// The returned view's Selection carries the effective model variant, which differs
// from sel.Variant when the hour is past the UKV horizon.
func (r *Resolver) Resolve(cat *catalogue.Catalogue, sel Selection) (View, error) {
	if cat.Len() == 0 {
		return View{}, ErrNoData
	}
	tab := r.Tabs.First()
	if sel.Tab != "" {
		t, err := r.Tabs.Tab(sel.Tab)
		if err != nil {
			return View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		tab = t
	}
	sel.Tab = tab.Name

	date, err := cat.DateAt(sel.DateIndex)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	run, err := cat.ModelRunAt(sel.DateIndex, sel.RunIndex)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if sel.Hour < 0 || sel.Hour > forecast.MaxHour {
		return View{}, fmt.Errorf("%w: hour %d", ErrInvalidInput, sel.Hour)
	}
	obs, err := plots.ParseObservation(sel.Observation)
	if err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sel.Observation = obs

	info, err := forecast.ResolveTime(cat, forecast.TimeRequest{
		DateIndex: sel.DateIndex,
		ModelRun:  run,
		Offset:    strconv.Itoa(sel.Hour),
	}, forecast.Options{Now: r.now(), Basis: r.Basis})
	if err != nil {
		return View{}, err
	}

	avail := forecast.Adjust(sel.Hour, sel.Variant)
	sel.Variant = avail.Effective

	resolved := r.Bases.Resolve(plots.Request{
		Tab:         tab,
		Time:        info,
		Variant:     avail.Effective,
		Observation: obs,
	})

	runs, _ := cat.ModelRuns(date)
	v := View{
		Selection:    sel,
		Date:         date,
		ModelRun:     run,
		Tab:          tab,
		Time:         info,
		Label:        info.Label,
		Availability: avail,
		Plots:        resolved,
		URLs:         plots.URLs(resolved),
		Dates:        cat.Dates(),
		Runs:         runs,
		Hours:        forecast.HourButtons(info.Run),
	}
	for _, img := range tab.Images {
		if img.Role == plots.RoleSatellite {
			v.Observations = plots.ObservationTypes
			break
		}
	}
	return v, nil
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
