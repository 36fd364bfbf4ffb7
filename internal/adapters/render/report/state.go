package report

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

func RenderSnapshot(snapshot domain.HardwareSnapshot) string {
	s := newStyles()

	lines := []string{
		s.title.Render("hardware state"),
		s.meta.Render("taken at " + snapshot.TakenAt.Format("15:04:05.000")),
	}

	if len(snapshot.Pins) == 0 && len(snapshot.Sensors) == 0 {
		lines = append(lines, s.empty.Render("  (empty)"))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, pinID := range sortedKeys(snapshot.Pins) {
		pin := snapshot.Pins[pinID]
		value := s.fail.Render("low")
		if pin.Value {
			value = s.pass.Render("high")
		}
		lines = append(lines, s.detail.Render(fmt.Sprintf("  %-6s", pinID))+value+s.meta.Render(fmt.Sprintf(" (%s)", pin.Mode)))
	}
	for _, sensorID := range sortedKeys(snapshot.Sensors) {
		sensor := snapshot.Sensors[sensorID]
		lines = append(lines, s.detail.Render(fmt.Sprintf("  %-6s", sensorID))+s.output.Render(fmt.Sprintf("%.3f", sensor.Value)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func RenderTwinChange(change domain.TwinChange) string {
	s := newStyles()

	lines := []string{
		s.title.Render(change.DeviceID) + s.meta.Render(" changed at "+change.ChangedAt.Format("15:04:05.000")),
	}
	for _, event := range change.Events {
		lines = append(lines, s.detail.Render(fmt.Sprintf("  %s %s: %s -> %s", event.Kind, event.Target, event.PreviousValue, event.NewValue)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
