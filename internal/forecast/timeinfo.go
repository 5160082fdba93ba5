package forecast

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lox/fiat/internal/catalogue"
)

// MaxHour is the last forecast hour offered (t+120h).
const MaxHour = 120

var ErrInvalidInput = errors.New("invalid input")

// Basis selects where dates past the end of the catalogue are counted from.
type Basis int

const (
	// FromToday adds the day offset to the real current date.
	FromToday Basis = iota
	// FromCatalogue continues counting days past the latest catalogue date.
	FromCatalogue
)

func (b Basis) String() string {
	if b == FromCatalogue {
		return "catalogue"
	}
	return "today"
}

// ParseBasis accepts "today" or "catalogue".
func ParseBasis(s string) (Basis, error) {
	switch s {
	case "", "today":
		return FromToday, nil
	case "catalogue":
		return FromCatalogue, nil
	}
	return FromToday, fmt.Errorf("%w: extrapolation basis %q", ErrInvalidInput, s)
}

// TimeRequest is the raw selection the time fields are derived from.
type TimeRequest struct {
	DateIndex int
	ModelRun  string // two digits, e.g. "06"
	Offset    string // hour offset digits as selected, e.g. "5" or "05"
	// HourLabel is the label of the selected hour control ("+5 hrs - 0500"). Its last
	// four characters are the clock time. Empty means use the canonical label.
	HourLabel string
}

// Options carries the inputs that are not part of the selection.
type Options struct {
	Now   time.Time
	Basis Basis
}

// TimeInfo is everything the URL builders and the header label need.
type TimeInfo struct {
	Date            string `json:"date"`
	ModelRun        string `json:"model_run"`
	Run             int    `json:"-"`
	Offset          int    `json:"offset"`
	OffsetDigits    string `json:"-"`
	PaddedOffset    string `json:"-"`
	Zulu            string `json:"zulu"`
	DayOffset       int    `json:"day_offset"`
	ForecastDate    string `json:"forecast_date"`
	ObservationDate string `json:"observation_date,omitempty"`
	Extrapolated    bool   `json:"extrapolated"`
	Clock           string `json:"clock"`
	Weekday         string `json:"weekday"`
	Label           string `json:"label"`
}

// HasObservations reports whether observation imagery can exist for the valid time.
func (t TimeInfo) HasObservations() bool {
	return t.ObservationDate != ""
}

// ResolveTime derives the valid time of a selection. Forecast dates that fall past the
// end of the catalogue are extrapolated and carry no observation date.
func ResolveTime(cat *catalogue.Catalogue, req TimeRequest, opts Options) (TimeInfo, error) {
	run, ok := digits(req.ModelRun)
	if !ok || run > 23 {
		return TimeInfo{}, fmt.Errorf("%w: model run %q", ErrInvalidInput, req.ModelRun)
	}
	offset, ok := digits(req.Offset)
	if !ok || offset > MaxHour {
		return TimeInfo{}, fmt.Errorf("%w: forecast hour %q", ErrInvalidInput, req.Offset)
	}
	date, err := cat.DateAt(req.DateIndex)
	if err != nil {
		return TimeInfo{}, fmt.Errorf("%w: date index %d: %v", ErrInvalidInput, req.DateIndex, err)
	}

	label := req.HourLabel
	if label == "" {
		label = HourLabel(run, offset)
	}
	clock, err := clockFromLabel(label)
	if err != nil {
		return TimeInfo{}, err
	}

	info := TimeInfo{
		Date:         date,
		ModelRun:     req.ModelRun,
		Run:          run,
		Offset:       offset,
		OffsetDigits: req.Offset,
		PaddedOffset: fmt.Sprintf("%02d", offset),
		Zulu:         fmt.Sprintf("%02d", (run+offset)%24),
		DayOffset:    (run + offset) / 24,
		Clock:        clock,
	}

	fcDate, err := cat.DateAtOffset(req.DateIndex, info.DayOffset)
	switch {
	case err == nil:
		info.ForecastDate = fcDate
		info.ObservationDate = fcDate
	case errors.Is(err, catalogue.ErrOutOfRange):
		info.ForecastDate = extrapolate(cat, req.DateIndex, info.DayOffset, opts)
		info.Extrapolated = true
	default:
		return TimeInfo{}, err
	}

	valid, err := time.Parse(catalogue.DateLayout, info.ForecastDate)
	if err != nil {
		return TimeInfo{}, fmt.Errorf("parse forecast date %q: %w", info.ForecastDate, err)
	}
	info.Weekday = valid.Weekday().String()
	info.Label = fmt.Sprintf("%s %sZ %s (t+%dh)", info.Weekday, info.Clock, valid.Format("02/01/2006"), info.Offset)
	return info, nil
}

func extrapolate(cat *catalogue.Catalogue, dateIndex, dayOffset int, opts Options) string {
	if opts.Basis == FromCatalogue {
		latest, err := time.Parse(catalogue.DateLayout, cat.Latest())
		if err == nil {
			past := dateIndex + dayOffset - (cat.Len() - 1)
			return latest.AddDate(0, 0, past).Format(catalogue.DateLayout)
		}
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+dayOffset, 0, 0, 0, 0, time.UTC).Format(catalogue.DateLayout)
}

func clockFromLabel(label string) (string, error) {
	if len(label) < 4 {
		return "", fmt.Errorf("%w: hour label %q", ErrInvalidInput, label)
	}
	clock := label[len(label)-4:]
	if _, ok := digits(clock); !ok {
		return "", fmt.Errorf("%w: hour label %q has no clock time", ErrInvalidInput, label)
	}
	return clock, nil
}

// digits parses a non-empty string of ASCII digits.
func digits(s string) (int, bool) {
	if s == "" || len(s) > 4 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
