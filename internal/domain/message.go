package domain

import "time"

type MessageKind string

const (
	KindExecute       MessageKind = "execute"
	KindQuery         MessageKind = "query"
	KindReset         MessageKind = "reset"
	KindConfigure     MessageKind = "configure"
	KindHardwareQuery MessageKind = "hardware_query"
	KindHardwareSet   MessageKind = "hardware_set"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindExecute, KindQuery, KindReset, KindConfigure, KindHardwareQuery, KindHardwareSet:
		return true
	}
	return false
}

type ExecMode string

const (
	ExecModeREPL ExecMode = "repl"
	ExecModeFile ExecMode = "file"
)

type RuntimeMessage struct {
	ID      string      `json:"id"`
	Kind    MessageKind `json:"kind"`
	Payload any         `json:"payload,omitempty"`
	SentAt  int64       `json:"sentAt"`
}

type RuntimeResponse struct {
	ID            string            `json:"id"`
	Success       bool              `json:"success"`
	Result        map[string]any    `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	ElapsedMs     int64             `json:"elapsedMs"`
	StateSnapshot *HardwareSnapshot `json:"stateSnapshot,omitempty"`
}

type ExecutePayload struct {
	Code      string   `json:"code"`
	Mode      ExecMode `json:"mode"`
	Monitor   bool     `json:"monitor"`
	TimeoutMs int64    `json:"timeoutMs,omitempty"`
}

type QueryPayload struct {
	Probe string `json:"probe"`
}

type ConfigurePayload struct {
	Board BoardProfile `json:"board"`
}

type PinWrite struct {
	Pin   string  `json:"pin"`
	Value bool    `json:"value"`
	Mode  PinMode `json:"mode,omitempty"`
}

type SensorWrite struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

type HardwareSetPayload struct {
	Pins    []PinWrite    `json:"pins,omitempty"`
	Sensors []SensorWrite `json:"sensors,omitempty"`
}

func (p HardwareSetPayload) Empty() bool {
	return len(p.Pins) == 0 && len(p.Sensors) == 0
}

func NewRuntimeMessage(id string, kind MessageKind, payload any, sentAt time.Time) RuntimeMessage {
	return RuntimeMessage{
		ID:      id,
		Kind:    kind,
		Payload: payload,
		SentAt:  sentAt.UnixMilli(),
	}
}
