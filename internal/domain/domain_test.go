package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageKindValid(t *testing.T) {
	t.Parallel()

	for _, kind := range []MessageKind{KindExecute, KindQuery, KindReset, KindConfigure, KindHardwareQuery, KindHardwareSet} {
		assert.True(t, kind.Valid(), "kind %q", kind)
	}
	assert.False(t, MessageKind("telemetry").Valid())
	assert.False(t, MessageKind("").Valid())
}

func TestExecutionTargetValid(t *testing.T) {
	t.Parallel()

	assert.True(t, TargetPhysical.Valid())
	assert.True(t, TargetVirtual.Valid())
	assert.True(t, TargetDual.Valid())
	assert.False(t, ExecutionTarget("cloud").Valid())
}

func TestNewRuntimeMessageStampsSentAt(t *testing.T) {
	t.Parallel()

	sentAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	message := NewRuntimeMessage("abc", KindExecute, ExecutePayload{Code: "1"}, sentAt)

	assert.Equal(t, "abc", message.ID)
	assert.Equal(t, sentAt.UnixMilli(), message.SentAt)
}

func TestRuntimeMessageWireFormat(t *testing.T) {
	t.Parallel()

	message := NewRuntimeMessage("abc", KindHardwareSet, HardwareSetPayload{
		Pins: []PinWrite{{Pin: "D13", Value: true}},
	}, time.UnixMilli(1700000000000))

	data, err := json.Marshal(message)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "abc",
		"kind": "hardware_set",
		"payload": {"pins": [{"pin": "D13", "value": true}]},
		"sentAt": 1700000000000
	}`, string(data))
}

func TestHardwareSetPayloadEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, HardwareSetPayload{}.Empty())
	assert.False(t, HardwareSetPayload{Pins: []PinWrite{{Pin: "D1"}}}.Empty())
	assert.False(t, HardwareSetPayload{Sensors: []SensorWrite{{ID: "light"}}}.Empty())
}

func TestHardwareSnapshotCloneIsIndependent(t *testing.T) {
	t.Parallel()

	original := HardwareSnapshot{
		Pins:    map[string]PinState{"D13": {Value: true}},
		Sensors: map[string]SensorState{"light": {Value: 0.5}},
		TakenAt: time.Now(),
	}

	clone := original.Clone()
	clone.Pins["D13"] = PinState{Value: false}
	clone.Sensors["light"] = SensorState{Value: 0.9}

	assert.True(t, original.Pins["D13"].Value)
	assert.InDelta(t, 0.5, original.Sensors["light"].Value, 1e-9)
}

func TestDeviceTwinCloneIsIndependent(t *testing.T) {
	t.Parallel()

	twin := NewDeviceTwin("board-1")
	twin.Pins["D5"] = PinState{Value: true}

	clone := twin.Clone()
	clone.Pins["D5"] = PinState{Value: false}

	assert.True(t, twin.Pins["D5"].Value)
	assert.Equal(t, "board-1", clone.DeviceID)
}

func TestGenericLinuxBoard(t *testing.T) {
	t.Parallel()

	board := GenericLinuxBoard()
	assert.Equal(t, "generic_linux_pc", board.ID)
	assert.Len(t, board.Pins, board.PinCount)
	assert.True(t, board.HasFeature("digitalio"))
	assert.False(t, board.HasFeature("neopixel"))
}
