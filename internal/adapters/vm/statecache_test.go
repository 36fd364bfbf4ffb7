package vm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

func TestStateCacheServesCacheInsideThrottleWindow(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	runtime.snapshot = domain.HardwareSnapshot{
		Pins: map[string]domain.PinState{"D13": {Value: true, Mode: domain.PinModeOutput}},
	}
	cache := NewStateCache(runtime, time.Hour, nil)

	first, err := cache.GetState(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Pins["D13"].Value)

	second, err := cache.GetState(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Pins["D13"].Value)

	assert.Equal(t, 1, runtime.calls(domain.KindHardwareQuery))
}

func TestStateCacheRefreshesAfterThrottleWindow(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	runtime.snapshot = domain.HardwareSnapshot{
		Sensors: map[string]domain.SensorState{"light": {Value: 0.25}},
	}
	cache := NewStateCache(runtime, 10*time.Millisecond, nil)

	_, err := cache.GetState(context.Background())
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	runtime.setSensor("light", 0.75)
	snapshot, err := cache.GetState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, runtime.calls(domain.KindHardwareQuery))
	assert.InDelta(t, 0.75, snapshot.Sensors["light"].Value, 1e-9)
}

func TestStateCacheSetThenGetRoundTripsWithoutQuery(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	runtime.snapshot = domain.HardwareSnapshot{
		Pins: map[string]domain.PinState{"D5": {Value: false, Mode: domain.PinModeOutput}},
	}
	cache := NewStateCache(runtime, time.Hour, nil)

	_, err := cache.GetState(context.Background())
	require.NoError(t, err)

	applied, err := cache.SetState(context.Background(), domain.HardwareSetPayload{
		Pins: []domain.PinWrite{{Pin: "D5", Value: true}},
	})
	require.NoError(t, err)
	require.True(t, applied)

	snapshot, err := cache.GetState(context.Background())
	require.NoError(t, err)

	assert.True(t, snapshot.Pins["D5"].Value, "write must be visible through the cache")
	assert.Equal(t, 1, runtime.calls(domain.KindHardwareQuery))
	assert.Equal(t, 1, runtime.calls(domain.KindHardwareSet))
}

func TestStateCacheSetStateAppendsCommunicationEvent(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	cache := NewStateCache(runtime, time.Hour, nil)

	applied, err := cache.SetState(context.Background(), domain.HardwareSetPayload{
		Pins:    []domain.PinWrite{{Pin: "D2", Value: true}},
		Sensors: []domain.SensorWrite{{ID: "temp", Value: 21.5}},
	})
	require.NoError(t, err)
	require.True(t, applied)

	timeline := cache.Timeline()
	require.Len(t, timeline, 1)
	assert.Equal(t, domain.EventCommunication, timeline[0].Kind)
	assert.Equal(t, "hardware_set", timeline[0].Target)
	assert.Equal(t, "1 pin(s), 1 sensor(s)", timeline[0].NewValue)
}

func TestStateCacheSetStateRejectionIsNotAnError(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	runtime.rejectSets = true
	cache := NewStateCache(runtime, time.Hour, nil)

	applied, err := cache.SetState(context.Background(), domain.HardwareSetPayload{
		Pins: []domain.PinWrite{{Pin: "D9", Value: true}},
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, cache.Timeline())
}

func TestStateCacheEmptyWriteIsNoOp(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	cache := NewStateCache(runtime, time.Hour, nil)

	applied, err := cache.SetState(context.Background(), domain.HardwareSetPayload{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, runtime.calls(domain.KindHardwareSet))
}

func TestStateCacheResetClearsCacheAndTimeline(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	runtime.snapshot = domain.HardwareSnapshot{
		Pins: map[string]domain.PinState{"D13": {Value: true}},
	}
	cache := NewStateCache(runtime, time.Hour, nil)

	_, err := cache.GetState(context.Background())
	require.NoError(t, err)
	cache.AddEvent(domain.HardwareEvent{Kind: domain.EventPinChange, Target: "D13"})

	require.NoError(t, cache.Reset(context.Background()))
	assert.Equal(t, 1, runtime.calls(domain.KindReset))
	assert.Empty(t, cache.Timeline())

	_, err = cache.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runtime.calls(domain.KindHardwareQuery), "reset must force a fresh query")
}

func TestStateCacheSnapshotTakenAtNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	later := time.Now()
	runtime.snapshot = domain.HardwareSnapshot{TakenAt: later}
	cache := NewStateCache(runtime, time.Millisecond, nil)

	first, err := cache.GetState(context.Background())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	runtime.setTakenAt(later.Add(-time.Minute))

	second, err := cache.GetState(context.Background())
	require.NoError(t, err)
	assert.False(t, second.TakenAt.Before(first.TakenAt))
}

func TestStateCacheGetStatePropagatesRuntimeFailure(t *testing.T) {
	t.Parallel()

	runtime := newFakeRuntime()
	runtime.sendErr = domain.ErrRuntimeNotReady
	cache := NewStateCache(runtime, time.Hour, nil)

	_, err := cache.GetState(context.Background())
	assert.ErrorIs(t, err, domain.ErrRuntimeNotReady)
}

func TestStateCacheTimelineReturnsCopy(t *testing.T) {
	t.Parallel()

	cache := NewStateCache(newFakeRuntime(), time.Hour, nil)
	cache.AddEvent(domain.HardwareEvent{Kind: domain.EventPinChange, Target: "D1", NewValue: "true"})

	timeline := cache.Timeline()
	timeline[0].Target = "mutated"

	assert.Equal(t, "D1", cache.Timeline()[0].Target)
}

type fakeRuntime struct {
	mu         sync.Mutex
	byKind     map[domain.MessageKind]int
	snapshot   domain.HardwareSnapshot
	rejectSets bool
	sendErr    error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{byKind: map[domain.MessageKind]int{}}
}

func (f *fakeRuntime) Send(_ context.Context, kind domain.MessageKind, _ any, _ time.Duration) (domain.RuntimeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.byKind[kind]++
	if f.sendErr != nil {
		return domain.RuntimeResponse{}, f.sendErr
	}

	switch kind {
	case domain.KindHardwareQuery:
		snapshot := f.snapshot.Clone()
		return domain.RuntimeResponse{Success: true, StateSnapshot: &snapshot}, nil
	case domain.KindHardwareSet:
		if f.rejectSets {
			return domain.RuntimeResponse{Success: false, Error: "read-only pin"}, nil
		}
		return domain.RuntimeResponse{Success: true}, nil
	default:
		return domain.RuntimeResponse{Success: true}, nil
	}
}

func (f *fakeRuntime) IsHealthy(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendErr == nil
}

func (f *fakeRuntime) calls(kind domain.MessageKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byKind[kind]
}

func (f *fakeRuntime) setSensor(id string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot.Sensors == nil {
		f.snapshot.Sensors = map[string]domain.SensorState{}
	}
	f.snapshot.Sensors[id] = domain.SensorState{Value: value}
}

func (f *fakeRuntime) setTakenAt(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot.TakenAt = at
}
