package api

import (
	"time"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/plots"
	"github.com/lox/fiat/internal/selection"
)

// IndexData is everything the dashboard template renders.
type IndexData struct {
	View         selection.View
	Tabs         []TabLink
	Dates        []Option
	Runs         []Option
	Sections     []HourSection
	Variants     []VariantLink
	Observations []ObservationLink
	Plots        []PlotView
	Hidden       map[string]string // selection fields carried by the date and run forms
	PrevDate     string
	NextDate     string
	PrevHour     string
	NextHour     string
	Slider       bool
	Placeholder  string
	LastSync     time.Time
}

type TabLink struct {
	Name   string
	Icon   string
	Text   string
	Href   string
	Active bool
}

type Option struct {
	Value    string
	Selected bool
}

// HourSection is one collapsible block of hour controls.
type HourSection struct {
	Label string
	Open  bool
	Hours []HourLink
}

type HourLink struct {
	Label  string
	Href   string
	Active bool
}

type VariantLink struct {
	Name     string
	Href     string
	Active   bool
	Disabled bool
}

type ObservationLink struct {
	Label  string
	Href   string
	Active bool
}

// PlotView is one image slot on the page.
type PlotView struct {
	ID       string
	Title    string
	URL      string
	Skipped  bool
	External bool
	Overlay  bool // drawn over the next plot behind the comparison slider
}

// buildIndexData turns a resolved view into links that each encode the next selection.
func buildIndexData(cat *catalogue.Catalogue, tabs *plots.Table, v selection.View) IndexData {
	sel := v.Selection
	href := func(next selection.Selection) string {
		return "/?" + next.Query(cat).Encode()
	}

	d := IndexData{
		View:        v,
		Slider:      v.Tab.Slider,
		Placeholder: "/placeholder.png",
		Hidden: map[string]string{
			"hour":  sel.Query(cat).Get("hour"),
			"tab":   sel.Tab,
			"model": string(sel.Variant),
			"obs":   sel.Observation,
		},
	}

	for _, t := range tabs.Tabs() {
		next := sel
		next.Tab = t.Name
		d.Tabs = append(d.Tabs, TabLink{
			Name:   t.Name,
			Icon:   t.Icon,
			Text:   t.IconText(),
			Href:   href(next),
			Active: t.Name == v.Tab.Name,
		})
	}

	for _, date := range v.Dates {
		d.Dates = append(d.Dates, Option{Value: date, Selected: date == v.Date})
	}
	for _, run := range v.Runs {
		d.Runs = append(d.Runs, Option{Value: run, Selected: run == v.ModelRun})
	}

	if sel.DateIndex > 0 {
		next := sel
		next.DateIndex, next.RunIndex = sel.DateIndex-1, 0
		d.PrevDate = href(next)
	}
	if sel.DateIndex < cat.Len()-1 {
		next := sel
		next.DateIndex, next.RunIndex = sel.DateIndex+1, 0
		d.NextDate = href(next)
	}
	if sel.Hour > 0 {
		next := sel
		next.Hour--
		d.PrevHour = href(next)
	}
	if sel.Hour < forecast.MaxHour {
		next := sel
		next.Hour++
		d.NextHour = href(next)
	}

	for _, b := range v.Hours {
		if b.Header {
			d.Sections = append(d.Sections, HourSection{
				Label: forecast.HourLabel(v.Time.Run, b.Offset),
				Open:  sel.Hour/forecast.SectionSize == b.Section,
			})
		}
		next := sel
		next.Hour = b.Offset
		s := &d.Sections[len(d.Sections)-1]
		s.Hours = append(s.Hours, HourLink{
			Label:  b.Label,
			Href:   href(next),
			Active: b.Offset == sel.Hour,
		})
	}

	if v.Tab.HasModelForecast() {
		for _, variant := range []forecast.Variant{forecast.UKV, forecast.Euro4} {
			next := sel
			next.Variant = variant
			d.Variants = append(d.Variants, VariantLink{
				Name:     string(variant),
				Href:     href(next),
				Active:   variant == v.Availability.Effective,
				Disabled: variant == forecast.UKV && !v.Availability.ShortHorizonSelectable,
			})
		}
	}

	for _, o := range v.Observations {
		next := sel
		next.Observation = o.Key
		d.Observations = append(d.Observations, ObservationLink{
			Label:  o.Label,
			Href:   href(next),
			Active: o.Key == sel.Observation,
		})
	}

	isObservation := func(i int) bool {
		return i < len(v.Plots) && v.Plots[i].Role == plots.RoleObservation
	}
	for i, p := range v.Plots {
		// The first of two adjacent observations is drawn over the second.
		overlay := v.Tab.Slider && isObservation(i) && isObservation(i+1) && (i == 0 || !d.Plots[i-1].Overlay)
		d.Plots = append(d.Plots, PlotView{
			ID:       p.ID,
			Title:    p.Title,
			URL:      p.URL,
			Skipped:  p.Skipped,
			External: p.External,
			Overlay:  overlay,
		})
	}
	return d
}
