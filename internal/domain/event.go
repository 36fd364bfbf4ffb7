package domain

type EventKind string

const (
	EventPinChange       EventKind = "pin_change"
	EventSensorReading   EventKind = "sensor_reading"
	EventActuatorCommand EventKind = "actuator_command"
	EventCommunication   EventKind = "communication"
	EventBreakpoint      EventKind = "breakpoint"
)

type HardwareEvent struct {
	Kind           EventKind `json:"kind"`
	Target         string    `json:"target"`
	PreviousValue  string    `json:"previousValue,omitempty"`
	NewValue       string    `json:"newValue"`
	OffsetMs       int64     `json:"offsetMs"`
	SourceLocation string    `json:"sourceLocation,omitempty"`
}
