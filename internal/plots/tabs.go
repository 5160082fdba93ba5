// Package plots describes the dashboard tabs and builds the image URLs for each of them.
package plots

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownTab = errors.New("unknown tab")
	ErrBadTable   = errors.New("invalid plot table")
)

// Role decides which URL shape an image uses.
type Role string

const (
	RoleObservation Role = "observation" // <root>/<path>/<obsdate><clock>.png
	RoleModified    Role = "modified"    // <plots>/ModifiedForecasts/<category>/<date>/<run>Z/<field>_<hh>.png
	RoleModel       Role = "model"       // <plots>/Forecasts/<variant>/<tab>/...
	RoleSatellite   Role = "satellite"   // <obs>/Obs_Data/Sat_<type>_<obsdate><clock>.png
	RoleErrorMap    Role = "errormap"    // <obs>/Obs_Data/ScreenTemp_ErrorMap/<obsdate>/<run>Z/ScreenTemp-<h>.png
)

// Root names one of the two image servers.
type Root string

const (
	RootPlots        Root = "plots"
	RootObservations Root = "observations"
)

// Image is one plot slot on a tab.
type Image struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Role     Role   `yaml:"role" json:"role"`
	Root     Root   `yaml:"root,omitempty" json:"root,omitempty"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	Field    string `yaml:"field,omitempty" json:"field,omitempty"`
}

// Tab is the static description of one dashboard tab.
type Tab struct {
	Name          string  `yaml:"name" json:"name"`
	Icon          string  `yaml:"icon,omitempty" json:"icon,omitempty"`
	ModelFilename string  `yaml:"model_filename,omitempty" json:"model_filename,omitempty"`
	Slider        bool    `yaml:"slider,omitempty" json:"slider"`
	Images        []Image `yaml:"images" json:"images"`
}

// ImageIDs returns the image ids in display order.
func (t Tab) ImageIDs() []string {
	ids := make([]string, len(t.Images))
	for i, img := range t.Images {
		ids[i] = img.ID
	}
	return ids
}

// HasModelForecast reports whether the tab shows a raw UKV/Euro4 plot.
func (t Tab) HasModelForecast() bool {
	return t.ModelFilename != ""
}

// IconText is shown in place of a missing icon: the first letter of the name.
func (t Tab) IconText() string {
	if t.Name == "" {
		return ""
	}
	return t.Name[:1]
}

// Table is the ordered set of tabs.
type Table struct {
	tabs   []Tab
	byName map[string]int
}

// NewTable validates tabs and keeps their order.
func NewTable(tabs []Tab) (*Table, error) {
	if len(tabs) == 0 {
		return nil, fmt.Errorf("%w: no tabs", ErrBadTable)
	}
	t := &Table{byName: make(map[string]int, len(tabs))}
	for _, tab := range tabs {
		if tab.Name == "" {
			return nil, fmt.Errorf("%w: tab without a name", ErrBadTable)
		}
		if _, dup := t.byName[tab.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tab %q", ErrBadTable, tab.Name)
		}
		if err := validateTab(tab); err != nil {
			return nil, err
		}
		t.byName[tab.Name] = len(t.tabs)
		t.tabs = append(t.tabs, tab)
	}
	return t, nil
}

func validateTab(tab Tab) error {
	ids := make(map[string]bool, len(tab.Images))
	models := 0
	for _, img := range tab.Images {
		if img.ID == "" {
			return fmt.Errorf("%w: %s: image without an id", ErrBadTable, tab.Name)
		}
		if ids[img.ID] {
			return fmt.Errorf("%w: %s: duplicate image %q", ErrBadTable, tab.Name, img.ID)
		}
		ids[img.ID] = true

		switch img.Root {
		case "", RootPlots, RootObservations:
		default:
			return fmt.Errorf("%w: %s/%s: unknown root %q", ErrBadTable, tab.Name, img.ID, img.Root)
		}

		switch img.Role {
		case RoleObservation:
			if img.Path == "" {
				return fmt.Errorf("%w: %s/%s: observation needs a path", ErrBadTable, tab.Name, img.ID)
			}
		case RoleModified:
			if img.Category == "" || img.Field == "" {
				return fmt.Errorf("%w: %s/%s: modified forecast needs category and field", ErrBadTable, tab.Name, img.ID)
			}
		case RoleModel:
			models++
			if tab.ModelFilename == "" {
				return fmt.Errorf("%w: %s/%s: model image on a tab without model_filename", ErrBadTable, tab.Name, img.ID)
			}
		case RoleSatellite, RoleErrorMap:
		default:
			return fmt.Errorf("%w: %s/%s: unknown role %q", ErrBadTable, tab.Name, img.ID, img.Role)
		}
	}
	if models > 1 {
		return fmt.Errorf("%w: %s: more than one model image", ErrBadTable, tab.Name)
	}
	return nil
}

// Tabs returns the tabs in display order.
func (t *Table) Tabs() []Tab {
	return append([]Tab(nil), t.tabs...)
}

// First is the tab selected when the dashboard opens.
func (t *Table) First() Tab {
	return t.tabs[0]
}

// Tab looks a tab up by name.
func (t *Table) Tab(name string) (Tab, error) {
	i, ok := t.byName[name]
	if !ok {
		return Tab{}, fmt.Errorf("%w: %q", ErrUnknownTab, name)
	}
	return t.tabs[i], nil
}

type tableFile struct {
	Tabs []Tab `yaml:"tabs"`
}

// LoadYAML reads a plot table of the form `tabs: [{name: ..., images: [...]}]`.
func LoadYAML(r io.Reader) (*Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadTable, err)
	}
	return NewTable(f.Tabs)
}

// LoadFile reads a YAML plot table from path, or returns the default table when path
// is empty.
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plot table: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
