package selection

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/plots"
)

// Event is one change the forecaster makes to the selection.
type Event interface {
	next(s Selection, cat *catalogue.Catalogue, tabs *plots.Table) (Selection, error)
}

// SelectDate picks a date from the list. The model run goes back to the first run.
type SelectDate struct{ Index int }

// StepDate moves through the dates, stopping at either end.
type StepDate struct{ Delta int }

// SelectRun picks a model run of the selected date.
type SelectRun struct{ Index int }

// SelectHour picks a forecast hour.
type SelectHour struct{ Hour int }

// StepHour moves through the forecast hours, stopping at t+0 and t+MaxHour.
type StepHour struct{ Delta int }

type SelectTab struct{ Name string }

type SelectVariant struct{ Variant forecast.Variant }

type SelectObservation struct{ Key string }

// ReplaceCatalogue swaps in a new catalogue, keeping the selected date and run when
// they still exist.
type ReplaceCatalogue struct{ Catalogue *catalogue.Catalogue }

func setDate(s Selection, i int) Selection {
	if i != s.DateIndex {
		s.DateIndex, s.RunIndex = i, 0
	}
	return s
}

func (e SelectDate) next(s Selection, cat *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	if _, err := cat.DateAt(e.Index); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return setDate(s, e.Index), nil
}

func (e StepDate) next(s Selection, cat *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	return setDate(s, clamp(s.DateIndex+e.Delta, 0, cat.Len()-1)), nil
}

func (e SelectRun) next(s Selection, cat *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	if _, err := cat.ModelRunAt(s.DateIndex, e.Index); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.RunIndex = e.Index
	return s, nil
}

func (e SelectHour) next(s Selection, _ *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	if e.Hour < 0 || e.Hour > forecast.MaxHour {
		return s, fmt.Errorf("%w: hour %d", ErrInvalidInput, e.Hour)
	}
	s.Hour = e.Hour
	return s, nil
}

func (e StepHour) next(s Selection, _ *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	s.Hour = clamp(s.Hour+e.Delta, 0, forecast.MaxHour)
	return s, nil
}

func (e SelectTab) next(s Selection, _ *catalogue.Catalogue, tabs *plots.Table) (Selection, error) {
	if _, err := tabs.Tab(e.Name); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.Tab = e.Name
	return s, nil
}

func (e SelectVariant) next(s Selection, _ *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	v, err := forecast.ParseVariant(string(e.Variant))
	if err != nil {
		return s, err
	}
	s.Variant = v
	return s, nil
}

func (e SelectObservation) next(s Selection, _ *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	obs, err := plots.ParseObservation(e.Key)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.Observation = obs
	return s, nil
}

// next is evaluated against the old catalogue; the controller swaps it in afterwards.
func (e ReplaceCatalogue) next(s Selection, old *catalogue.Catalogue, _ *plots.Table) (Selection, error) {
	if e.Catalogue == nil || e.Catalogue.Len() == 0 {
		return s, ErrNoData
	}
	date, _ := old.DateAt(s.DateIndex)
	run, _ := old.ModelRunAt(s.DateIndex, s.RunIndex)

	i, err := e.Catalogue.Index(date)
	if err != nil {
		s.DateIndex, s.RunIndex = e.Catalogue.Len()-1, 0
		return s, nil
	}
	s.DateIndex, s.RunIndex = i, 0
	runs, _ := e.Catalogue.ModelRuns(date)
	for j, r := range runs {
		if r == run {
			s.RunIndex = j
			break
		}
	}
	return s, nil
}

// DecodeEvent reads an event of the form {"type": "step_hour", "delta": 1}.
func DecodeEvent(data []byte) (Event, error) {
	var raw struct {
		Type    string `json:"type"`
		Index   int    `json:"index"`
		Delta   int    `json:"delta"`
		Hour    int    `json:"hour"`
		Name    string `json:"name"`
		Variant string `json:"variant"`
		Key     string `json:"key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	switch raw.Type {
	case "select_date":
		return SelectDate{Index: raw.Index}, nil
	case "step_date":
		return StepDate{Delta: raw.Delta}, nil
	case "select_run":
		return SelectRun{Index: raw.Index}, nil
	case "select_hour":
		return SelectHour{Hour: raw.Hour}, nil
	case "step_hour":
		return StepHour{Delta: raw.Delta}, nil
	case "select_tab":
		return SelectTab{Name: raw.Name}, nil
	case "select_variant":
		return SelectVariant{Variant: forecast.Variant(raw.Variant)}, nil
	case "select_observation":
		return SelectObservation{Key: raw.Key}, nil
	}
	return nil, fmt.Errorf("%w: event type %q", ErrInvalidInput, raw.Type)
}

// Controller owns the current selection and publishes a new view after every event.
type Controller struct {
	resolver *Resolver

	mu     sync.Mutex
	cat    *catalogue.Catalogue
	sel    Selection
	view   View
	nextID int
	subs   map[int]func(View)
}

// NewController resolves the initial selection.
func NewController(r *Resolver, cat *catalogue.Catalogue, sel Selection) (*Controller, error) {
	v, err := r.Resolve(cat, sel)
	if err != nil {
		return nil, err
	}
	return &Controller{
		resolver: r,
		cat:      cat,
		sel:      v.Selection,
		view:     v,
		subs:     make(map[int]func(View)),
	}, nil
}

// Apply derives the next selection from e and publishes its view. A failed event
// leaves the current selection and view untouched.
//
// Subscribers are called with the lock held so views reach them in the order events
// were applied.
func (c *Controller) Apply(e Event) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sel, err := e.next(c.sel, c.cat, c.resolver.Tabs)
	if err != nil {
		return View{}, err
	}
	cat := c.cat
	if rc, ok := e.(ReplaceCatalogue); ok {
		cat = rc.Catalogue
	}
	v, err := c.resolver.Resolve(cat, sel)
	if err != nil {
		return View{}, err
	}
	c.cat, c.sel, c.view = cat, v.Selection, v
	for _, fn := range c.subs {
		fn(v)
	}
	return v, nil
}

// View returns the last published view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Selection returns the current selection.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel
}

// Subscribe registers fn for every published view. fn must not call back into the
// controller. The returned func removes the subscription.
func (c *Controller) Subscribe(fn func(View)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
