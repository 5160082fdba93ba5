// Package catalogue holds the set of dates and model runs for which plots are known to
// exist. A Catalogue is built once and never mutated; callers that need a newer view
// build a new one and swap it in whole.
package catalogue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DateLayout is the 8-digit date identifier used throughout the plot tree.
const DateLayout = "20060102"

var (
	ErrNotFound   = errors.New("date not in catalogue")
	ErrOutOfRange = errors.New("offset beyond catalogue")
	ErrInvalid    = errors.New("invalid catalogue")
)

// runToken matches entries such as "00Z" or "18UTC"; only the first two digits count.
var runToken = regexp.MustCompile(`^\d{2}.`)

// Entry is one catalogue date with its model runs, in display order.
type Entry struct {
	Date string   `json:"date"`
	Runs []string `json:"runs"`
}

type Catalogue struct {
	dates []string
	runs  map[string][]string
	index map[string]int
}

// New validates entries and builds a catalogue. Dates must be strictly chronological
// and every date needs at least one run in 00..23.
func New(entries []Entry) (*Catalogue, error) {
	c := &Catalogue{
		runs:  make(map[string][]string, len(entries)),
		index: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if err := validDate(e.Date); err != nil {
			return nil, err
		}
		if i > 0 && e.Date <= entries[i-1].Date {
			return nil, fmt.Errorf("%w: %s is not after %s", ErrInvalid, e.Date, entries[i-1].Date)
		}
		if len(e.Runs) == 0 {
			return nil, fmt.Errorf("%w: %s has no model runs", ErrInvalid, e.Date)
		}
		runs := make([]string, 0, len(e.Runs))
		for _, r := range e.Runs {
			if _, ok := hour(r); !ok {
				return nil, fmt.Errorf("%w: %s has bad model run %q", ErrInvalid, e.Date, r)
			}
			runs = append(runs, r)
		}
		c.index[e.Date] = len(c.dates)
		c.dates = append(c.dates, e.Date)
		c.runs[e.Date] = runs
	}
	return c, nil
}

// ParseRuns splits a run list such as "00Z,06Z,12Z,18Z" into two-digit hours.
// Tokens that do not start with two digits followed by a character are ignored.
func ParseRuns(s string) []string {
	var runs []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if !runToken.MatchString(tok) {
			continue
		}
		runs = append(runs, tok[:2])
	}
	return runs
}

// ParseJSON reads the `{"20160823":"00Z,06Z,12Z,18Z", ...}` mapping, keeping key order.
func ParseJSON(data []byte) (*Catalogue, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object of date to run list", ErrInvalid)
	}
	var entries []Entry
	root.ForEach(func(key, value gjson.Result) bool {
		entries = append(entries, Entry{Date: key.String(), Runs: ParseRuns(value.String())})
		return true
	})
	return New(entries)
}

// FromMap builds a catalogue from an unordered mapping, sorting dates.
func FromMap(m map[string]string) (*Catalogue, error) {
	dates := make([]string, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	entries := make([]Entry, 0, len(dates))
	for _, d := range dates {
		entries = append(entries, Entry{Date: d, Runs: ParseRuns(m[d])})
	}
	return New(entries)
}

// hour parses a two-digit hour in 00..23.
func hour(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	n, _ := strconv.Atoi(s)
	return n, n <= 23
}

func validDate(d string) error {
	if len(d) != len(DateLayout) {
		return fmt.Errorf("%w: date %q is not YYYYMMDD", ErrInvalid, d)
	}
	if _, err := time.Parse(DateLayout, d); err != nil {
		return fmt.Errorf("%w: date %q: %v", ErrInvalid, d, err)
	}
	return nil
}

// Len returns the number of dates.
func (c *Catalogue) Len() int { return len(c.dates) }

// Dates returns the available dates in chronological order.
func (c *Catalogue) Dates() []string {
	return append([]string(nil), c.dates...)
}

// Latest returns the newest date, or "" for an empty catalogue.
func (c *Catalogue) Latest() string {
	if len(c.dates) == 0 {
		return ""
	}
	return c.dates[len(c.dates)-1]
}

// Index returns the position of date.
func (c *Catalogue) Index(date string) (int, error) {
	i, ok := c.index[date]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, date)
	}
	return i, nil
}

// DateAt returns the date at index i.
func (c *Catalogue) DateAt(i int) (string, error) {
	if i < 0 || i >= len(c.dates) {
		return "", fmt.Errorf("%w: index %d of %d", ErrOutOfRange, i, len(c.dates))
	}
	return c.dates[i], nil
}

// ModelRuns returns the two-digit runs for date.
func (c *Catalogue) ModelRuns(date string) ([]string, error) {
	runs, ok := c.runs[date]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
	}
	return append([]string(nil), runs...), nil
}

// ModelRunAt returns run runIndex of the date at dateIndex.
func (c *Catalogue) ModelRunAt(dateIndex, runIndex int) (string, error) {
	date, err := c.DateAt(dateIndex)
	if err != nil {
		return "", err
	}
	runs := c.runs[date]
	if runIndex < 0 || runIndex >= len(runs) {
		return "", fmt.Errorf("%w: run index %d of %d for %s", ErrOutOfRange, runIndex, len(runs), date)
	}
	return runs[runIndex], nil
}

// DateAtOffset returns the catalogue date dayOffset entries after baseIndex.
// It fails with ErrOutOfRange once that walks off the end of the catalogue.
func (c *Catalogue) DateAtOffset(baseIndex, dayOffset int) (string, error) {
	if baseIndex < 0 || dayOffset < 0 {
		return "", fmt.Errorf("%w: base %d offset %d", ErrOutOfRange, baseIndex, dayOffset)
	}
	return c.DateAt(baseIndex + dayOffset)
}

// Entries returns a copy of the catalogue contents.
func (c *Catalogue) Entries() []Entry {
	out := make([]Entry, 0, len(c.dates))
	for _, d := range c.dates {
		out = append(out, Entry{Date: d, Runs: append([]string(nil), c.runs[d]...)})
	}
	return out
}

// MarshalJSON writes the catalogue back in its input format, dates in order.
func (c *Catalogue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range c.dates {
		if i > 0 {
			buf.WriteByte(',')
		}
		runs := make([]string, len(c.runs[d]))
		for j, r := range c.runs[d] {
			runs[j] = r + "Z"
		}
		k, _ := json.Marshal(d)
		v, _ := json.Marshal(strings.Join(runs, ","))
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
