package forecast

import "fmt"

// SectionSize is how many hour controls share one collapsible section.
const SectionSize = 12

// HourButton describes one forecast-hour control.
type HourButton struct {
	Offset  int    `json:"offset"`
	Label   string `json:"label"`
	Section int    `json:"section"`
	Header  bool   `json:"header"`
}

// HourLabel is the control text for an offset from a run, e.g. "+5 hrs - 0500".
func HourLabel(run, offset int) string {
	return fmt.Sprintf("+%d hrs - %02d00", offset, (run+offset)%24)
}

// HourButtons lists the controls for t+0 to t+MaxHour from the given run.
func HourButtons(run int) []HourButton {
	buttons := make([]HourButton, 0, MaxHour+1)
	for h := 0; h <= MaxHour; h++ {
		buttons = append(buttons, HourButton{
			Offset:  h,
			Label:   HourLabel(run, h),
			Section: h / SectionSize,
			Header:  h%SectionSize == 0,
		})
	}
	return buttons
}
