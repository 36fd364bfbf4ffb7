package domain

import "time"

// DeviceTwin mirrors the live state of one physical device. Physical
// readings always overwrite the twin, never the reverse.
type DeviceTwin struct {
	DeviceID   string
	LastSyncAt time.Time
	Pins       map[string]PinState
	Sensors    map[string]SensorState
}

func NewDeviceTwin(deviceID string) DeviceTwin {
	return DeviceTwin{
		DeviceID: deviceID,
		Pins:     map[string]PinState{},
		Sensors:  map[string]SensorState{},
	}
}

func (t DeviceTwin) Clone() DeviceTwin {
	out := DeviceTwin{
		DeviceID:   t.DeviceID,
		LastSyncAt: t.LastSyncAt,
		Pins:       make(map[string]PinState, len(t.Pins)),
		Sensors:    make(map[string]SensorState, len(t.Sensors)),
	}
	for id, pin := range t.Pins {
		out.Pins[id] = pin
	}
	for id, sensor := range t.Sensors {
		out.Sensors[id] = sensor
	}
	return out
}

type TwinChange struct {
	DeviceID  string
	ChangedAt time.Time
	Events    []HardwareEvent
}
