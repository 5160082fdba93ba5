package catalogue

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// ModifiedForecastsDir is the subtree whose layout defines which runs exist:
// ModifiedForecasts/<Category>/<YYYYMMDD>/<HH>Z/.
const ModifiedForecastsDir = "ModifiedForecasts"

// Scan walks a plot tree and builds a catalogue from the run directories it finds.
// A date/run pair is listed when any category has a directory for it.
func Scan(fsys fs.FS) (*Catalogue, error) {
	matches, err := fs.Glob(fsys, path.Join(ModifiedForecastsDir, "*", "*", "*Z"))
	if err != nil {
		return nil, fmt.Errorf("glob plot tree: %w", err)
	}

	found := make(map[string]map[string]bool)
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil || !info.IsDir() {
			continue
		}
		date, run, ok := splitRunDir(m)
		if !ok {
			continue
		}
		if found[date] == nil {
			found[date] = make(map[string]bool)
		}
		found[date][run] = true
	}

	dates := make([]string, 0, len(found))
	for d := range found {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	entries := make([]Entry, 0, len(dates))
	for _, d := range dates {
		runs := make([]string, 0, len(found[d]))
		for r := range found[d] {
			runs = append(runs, r)
		}
		sort.Strings(runs)
		entries = append(entries, Entry{Date: d, Runs: runs})
	}
	return New(entries)
}

// splitRunDir extracts date and run from ModifiedForecasts/<cat>/<date>/<HH>Z.
func splitRunDir(p string) (date, run string, ok bool) {
	parts := strings.Split(p, "/")
	if len(parts) != 4 {
		return "", "", false
	}
	date, runDir := parts[2], parts[3]
	if validDate(date) != nil {
		return "", "", false
	}
	if len(runDir) != 3 {
		return "", "", false
	}
	if _, ok := hour(runDir[:2]); !ok || runDir[2] != 'Z' {
		return "", "", false
	}
	return date, runDir[:2], true
}
