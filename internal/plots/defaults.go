package plots

import (
	"errors"
	"fmt"
)

var ErrUnknownObservation = errors.New("unknown observation type")

// ObservationType is one of the satellite products shown on the Cloud tab.
type ObservationType struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var ObservationTypes = []ObservationType{
	{Key: "Cloud/EHEA11", Label: "Cloud Top"},
	{Key: "Vis/EVEB71", Label: "Visible Light"},
	{Key: "IR/EIEA51", Label: "IR"},
}

// DefaultObservation is the satellite product selected when the Cloud tab opens.
const DefaultObservation = "Cloud/EHEA11"

// ParseObservation checks key against ObservationTypes.
func ParseObservation(key string) (string, error) {
	if key == "" {
		return DefaultObservation, nil
	}
	for _, o := range ObservationTypes {
		if o.Key == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownObservation, key)
}

var defaultTabs = []Tab{
	{
		Name:          "Precipitation",
		ModelFilename: "PmslZRnSnCl",
		// The radar image sits over the station image and is revealed by the slider.
		Slider: true,
		Images: []Image{
			{ID: "precipitationModImg", Title: "Modified Forecast", Role: RoleModified, Category: "Modified_Rain_Rate", Field: "Rain_Rate"},
			{ID: "precipitationFcstImg", Title: "Euro4 Forecast", Role: RoleModel},
			{ID: "precipitationRadarObs", Title: "", Role: RoleObservation, Root: RootObservations, Path: "Obs_Data/Radar"},
			{ID: "precipitationStationObs", Title: "Radar/Station Observations (Rain Gauge)", Role: RoleObservation, Path: "Observations/Precip_Station"},
		},
	},
	{
		Name:          "Temperature",
		ModelFilename: "T_surf",
		Images: []Image{
			{ID: "temperatureModImg", Title: "Modified Forecast", Role: RoleModified, Category: "Modified_Temperature_1p5m", Field: "Temperature_1p5m"},
			{ID: "temperatureFcstImg", Title: "Euro4 Forecast", Role: RoleModel},
			{ID: "temperatureStationObs", Title: "Station Observations", Role: RoleObservation, Path: "Observations/Temp_Station"},
		},
	},
	{
		Name:          "Cloud",
		ModelFilename: "cloud",
		Images: []Image{
			{ID: "cloudModImg", Title: "Modified Forecast", Role: RoleModified, Category: "Modified_Cloud", Field: "Cloud"},
			{ID: "cloudFcstImg", Title: "Euro4 Forecast", Role: RoleModel},
			{ID: "cloudObsImg", Title: "Satellite Image Type", Role: RoleSatellite},
		},
	},
}

// DefaultTable returns the Precipitation, Temperature and Cloud tabs.
func DefaultTable() *Table {
	t, err := NewTable(defaultTabs)
	if err != nil {
		panic(err)
	}
	return t
}
