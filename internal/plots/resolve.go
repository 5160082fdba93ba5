package plots

import (
	"strings"

	"github.com/lox/fiat/internal/forecast"
)

// Bases are the two image server roots URLs are built on.
type Bases struct {
	// Plots is the FIAT plot root. The default is site-relative.
	Plots string
	// Observations is the external observation server.
	Observations string
}

var DefaultBases = Bases{
	Plots:        "FIATPlots",
	Observations: "http://www-nwp/~meso/UFO_VT",
}

// Request is everything needed to build the URLs of one tab.
type Request struct {
	Tab         Tab
	Time        forecast.TimeInfo
	Variant     forecast.Variant
	Observation string
}

// Plot is one resolved image slot. A skipped plot has an empty URL.
type Plot struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Role    Role   `json:"role"`
	URL     string `json:"url,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	// External plots come from the observation server and cannot be substituted
	// server-side when missing.
	External bool `json:"external,omitempty"`
}

// Resolve builds the URL of every image on the tab. It never checks that the URLs exist.
func (b Bases) Resolve(req Request) []Plot {
	plots := make([]Plot, 0, len(req.Tab.Images))
	for _, img := range req.Tab.Images {
		p := Plot{ID: img.ID, Title: img.Title, Role: img.Role}
		root := b.root(img)
		p.External = root == b.Observations && b.Observations != b.Plots

		var url string
		switch img.Role {
		case RoleObservation:
			url = observation(root, img, req.Time)
		case RoleModified:
			url = modified(root, img, req.Time)
		case RoleModel:
			variant := req.Variant
			if variant == "" {
				variant = forecast.DefaultVariant
			}
			p.Title = string(variant) + " Forecast"
			url = model(root, req.Tab, variant, req.Time)
		case RoleSatellite:
			obs := req.Observation
			if obs == "" {
				obs = DefaultObservation
			}
			url = satellite(root, obs, req.Time)
		case RoleErrorMap:
			url = errorMap(root, req.Time)
		}
		p.URL = url
		p.Skipped = url == ""
		plots = append(plots, p)
	}
	return plots
}

// URLs returns the resolved URL set keyed by image id. Skipped images are absent.
func URLs(plots []Plot) map[string]string {
	m := make(map[string]string, len(plots))
	for _, p := range plots {
		if !p.Skipped {
			m[p.ID] = p.URL
		}
	}
	return m
}

func (b Bases) root(img Image) string {
	switch img.Root {
	case RootObservations:
		return b.Observations
	case RootPlots:
		return b.Plots
	}
	switch img.Role {
	case RoleSatellite, RoleErrorMap:
		return b.Observations
	}
	return b.Plots
}

func join(root string, parts ...string) string {
	return strings.TrimRight(root, "/") + "/" + strings.Join(parts, "")
}

func observation(root string, img Image, t forecast.TimeInfo) string {
	if !t.HasObservations() {
		return ""
	}
	return join(root, strings.Trim(img.Path, "/"), "/", t.ObservationDate, t.Clock, ".png")
}

func modified(root string, img Image, t forecast.TimeInfo) string {
	return join(root, "ModifiedForecasts/", img.Category, "/", t.Date, "/", t.ModelRun, "Z/",
		img.Field, "_", t.PaddedOffset, ".png")
}

func model(root string, tab Tab, v forecast.Variant, t forecast.TimeInfo) string {
	return join(root, "Forecasts/", string(v), "/", tab.Name, "/", t.Date, "/", t.ModelRun, "Z/",
		tab.ModelFilename, "_oper-", v.FileToken(), "_", t.ForecastDate, "_", t.Zulu, "Z_T", t.OffsetDigits,
		"_UKrot.png")
}

// satellite dates the image by the valid time's observation date rather than the
// selected catalogue date, and skips it past the catalogue like station observations,
// so a satellite frame never shows a different day than the forecast beside it.
func satellite(root, obs string, t forecast.TimeInfo) string {
	if !t.HasObservations() {
		return ""
	}
	return join(root, "Obs_Data/Sat_", obs, "_", t.ObservationDate, t.Clock, ".png")
}

func errorMap(root string, t forecast.TimeInfo) string {
	if !t.HasObservations() {
		return ""
	}
	return join(root, "Obs_Data/ScreenTemp_ErrorMap/", t.ObservationDate, "/", t.ModelRun, "Z/ScreenTemp-",
		t.OffsetDigits, ".png")
}
