package repl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

// stateDumpCode asks the board-side helper library for a one-line JSON dump
// of its current pin and sensor values.
const stateDumpCode = "import json, mu2\nprint(json.dumps(mu2.state()))\n"

type stateDump struct {
	Pins    map[string]pinDump    `json:"pins"`
	Sensors map[string]sensorDump `json:"sensors"`
}

type pinDump struct {
	Value bool   `json:"value"`
	Mode  string `json:"mode"`
}

type sensorDump struct {
	Value float64 `json:"value"`
}

// StateProbe polls live pin/sensor state by executing a state-dump command
// through a REPL session and parsing the JSON reply.
type StateProbe struct {
	session *Session
	clock   ports.Clock
}

var _ ports.DevicePoller = (*StateProbe)(nil)

func NewStateProbe(transport ports.DeviceTransport, clock ports.Clock) *StateProbe {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &StateProbe{session: NewSession(transport), clock: clock}
}

func (p *StateProbe) Poll(ctx context.Context) (domain.HardwareSnapshot, error) {
	output, err := p.session.Run(ctx, stateDumpCode)
	if err != nil {
		return domain.HardwareSnapshot{}, fmt.Errorf("probe device state: %w", err)
	}

	line := lastNonEmptyLine(output)
	if line == "" {
		return domain.HardwareSnapshot{}, fmt.Errorf("probe device state: empty reply")
	}

	var dump stateDump
	if err := json.Unmarshal([]byte(line), &dump); err != nil {
		return domain.HardwareSnapshot{}, fmt.Errorf("decode state dump: %w", err)
	}

	now := p.clock.Now()
	snapshot := domain.HardwareSnapshot{
		Pins:    make(map[string]domain.PinState, len(dump.Pins)),
		Sensors: make(map[string]domain.SensorState, len(dump.Sensors)),
		TakenAt: now,
	}
	for id, pin := range dump.Pins {
		snapshot.Pins[id] = domain.PinState{
			Value:         pin.Value,
			Mode:          domain.PinMode(pin.Mode),
			LastChangedAt: now,
		}
	}
	for id, sensor := range dump.Sensors {
		snapshot.Sensors[id] = domain.SensorState{Value: sensor.Value, LastReadAt: now}
	}

	return snapshot, nil
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
