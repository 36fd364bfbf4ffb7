package domain

import "time"

type PinMode string

const (
	PinModeInput  PinMode = "input"
	PinModeOutput PinMode = "output"
	PinModePWM    PinMode = "pwm"
)

type PinState struct {
	Value         bool      `json:"value"`
	Mode          PinMode   `json:"mode"`
	LastChangedAt time.Time `json:"lastChangedAt"`
}

type SensorState struct {
	Value      float64   `json:"value"`
	LastReadAt time.Time `json:"lastReadAt"`
}

// HardwareSnapshot is immutable once captured; a newer snapshot supersedes
// it rather than mutating it in place.
type HardwareSnapshot struct {
	Pins    map[string]PinState    `json:"pins"`
	Sensors map[string]SensorState `json:"sensors"`
	TakenAt time.Time              `json:"takenAt"`
}

func (s HardwareSnapshot) Clone() HardwareSnapshot {
	out := HardwareSnapshot{
		Pins:    make(map[string]PinState, len(s.Pins)),
		Sensors: make(map[string]SensorState, len(s.Sensors)),
		TakenAt: s.TakenAt,
	}
	for id, pin := range s.Pins {
		out.Pins[id] = pin
	}
	for id, sensor := range s.Sensors {
		out.Sensors[id] = sensor
	}
	return out
}
