package forecast

import (
	"fmt"
	"strings"
)

// Variant is a raw model whose forecast plots can be shown beside the modified forecast.
type Variant string

const (
	UKV   Variant = "UKV"
	Euro4 Variant = "Euro4"
)

// DefaultVariant is shown until the forecaster picks another.
const DefaultVariant = Euro4

// ShortHorizonLimit is the last hour the UKV run covers.
const ShortHorizonLimit = 36

// ParseVariant matches a variant name case-insensitively.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "ukv":
		return UKV, nil
	case "euro4":
		return Euro4, nil
	}
	return "", fmt.Errorf("%w: model variant %q", ErrInvalidInput, s)
}

// FileToken is the model tag in plot filenames: "ukv" or "eur".
func (v Variant) FileToken() string {
	s := strings.ToLower(string(v))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

// Availability is the outcome of applying the horizon rule to a choice.
type Availability struct {
	Effective              Variant `json:"effective"`
	ShortHorizonSelectable bool    `json:"ukv_selectable"`
}

// Adjust applies the horizon rule: past ShortHorizonLimit only Euro4 has data, so it is
// forced whatever was chosen; up to the limit the choice stands and UKV is selectable.
func Adjust(offset int, current Variant) Availability {
	if offset > ShortHorizonLimit {
		return Availability{Effective: Euro4}
	}
	if current == "" {
		current = DefaultVariant
	}
	return Availability{Effective: current, ShortHorizonSelectable: true}
}
