// Package selection turns the forecaster's selection into the complete dashboard view.
package selection

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/plots"
)

var ErrInvalidInput = forecast.ErrInvalidInput

// Selection is the forecaster's current choice. It is a value: changing a field yields
// a new Selection.
type Selection struct {
	DateIndex   int              `json:"date_index"`
	RunIndex    int              `json:"run_index"`
	Hour        int              `json:"hour"`
	Tab         string           `json:"tab"`
	Variant     forecast.Variant `json:"variant"`
	Observation string           `json:"observation"`
}

// Default is the selection the dashboard opens with.
func Default(tabs *plots.Table) Selection {
	return Selection{
		Tab:         tabs.First().Name,
		Variant:     forecast.DefaultVariant,
		Observation: plots.DefaultObservation,
	}
}

// Query encodes s as URL parameters. Dates and runs are written by value so a link
// still points at the same plots after the catalogue grows.
func (s Selection) Query(cat *catalogue.Catalogue) url.Values {
	q := url.Values{}
	if date, err := cat.DateAt(s.DateIndex); err == nil {
		q.Set("date", date)
		if run, err := cat.ModelRunAt(s.DateIndex, s.RunIndex); err == nil {
			q.Set("run", run)
		}
	}
	q.Set("hour", strconv.Itoa(s.Hour))
	if s.Tab != "" {
		q.Set("tab", s.Tab)
	}
	if s.Variant != "" {
		q.Set("model", string(s.Variant))
	}
	if s.Observation != "" {
		q.Set("obs", s.Observation)
	}
	return q
}

// FromQuery decodes URL parameters on top of base. Missing parameters keep base's
// values.
func FromQuery(cat *catalogue.Catalogue, tabs *plots.Table, base Selection, q url.Values) (Selection, error) {
	s := base
	if date := q.Get("date"); date != "" {
		i, err := cat.Index(date)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if i != s.DateIndex {
			s.DateIndex, s.RunIndex = i, 0
		}
	}
	if run := q.Get("run"); run != "" {
		runs, err := cat.ModelRuns(mustDate(cat, s.DateIndex))
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		found := false
		for i, r := range runs {
			if r == run {
				s.RunIndex, found = i, true
				break
			}
		}
		if !found {
			return Selection{}, fmt.Errorf("%w: model run %q not available", ErrInvalidInput, run)
		}
	}
	if h := q.Get("hour"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil || n < 0 || n > forecast.MaxHour {
			return Selection{}, fmt.Errorf("%w: hour %q", ErrInvalidInput, h)
		}
		s.Hour = n
	}
	if name := q.Get("tab"); name != "" {
		if _, err := tabs.Tab(name); err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		s.Tab = name
	}
	if m := q.Get("model"); m != "" {
		v, err := forecast.ParseVariant(m)
		if err != nil {
			return Selection{}, err
		}
		s.Variant = v
	}
	if o := q.Get("obs"); o != "" {
		obs, err := plots.ParseObservation(o)
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		s.Observation = obs
	}
	return s, nil
}

func mustDate(cat *catalogue.Catalogue, i int) string {
	date, _ := cat.DateAt(i)
	return date
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
