package vm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	// DefaultThrottleWindow keeps perceived state reads under the 250ms
	// responsiveness budget without a round trip per call.
	DefaultThrottleWindow = 50 * time.Millisecond

	stateRequestTimeout = 2 * time.Second
)

// StateCache throttles pin/sensor reads against the virtual runtime and
// records the per-session hardware event timeline. Writes always go to the
// runtime; only reads are served from cache inside the throttle window.
type StateCache struct {
	runtime ports.VirtualRuntime
	limiter *rate.Limiter
	clock   ports.Clock
	timeout time.Duration

	mu           sync.Mutex
	snapshot     *domain.HardwareSnapshot
	timeline     []domain.HardwareEvent
	sessionStart time.Time
}

var _ ports.HardwareState = (*StateCache)(nil)

func NewStateCache(runtime ports.VirtualRuntime, throttle time.Duration, clock ports.Clock) *StateCache {
	if throttle <= 0 {
		throttle = DefaultThrottleWindow
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &StateCache{
		runtime:      runtime,
		limiter:      rate.NewLimiter(rate.Every(throttle), 1),
		clock:        clock,
		timeout:      stateRequestTimeout,
		sessionStart: clock.Now(),
	}
}

// GetState returns the cached snapshot while it is younger than the
// throttle window, and refreshes it from the runtime otherwise.
func (c *StateCache) GetState(ctx context.Context) (domain.HardwareSnapshot, error) {
	c.mu.Lock()
	refresh := c.limiter.Allow()
	if c.snapshot != nil && !refresh {
		cached := c.snapshot.Clone()
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	response, err := c.runtime.Send(ctx, domain.KindHardwareQuery, nil, c.timeout)
	if err != nil {
		return domain.HardwareSnapshot{}, fmt.Errorf("query hardware state: %w", err)
	}
	if !response.Success {
		return domain.HardwareSnapshot{}, fmt.Errorf("query hardware state: %s", response.Error)
	}
	if response.StateSnapshot == nil {
		return domain.HardwareSnapshot{}, fmt.Errorf("hardware_query response %s carried no snapshot", response.ID)
	}

	snapshot := response.StateSnapshot.Clone()
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = c.clock.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// TakenAt never moves backwards for the same cache.
	if c.snapshot != nil && snapshot.TakenAt.Before(c.snapshot.TakenAt) {
		snapshot.TakenAt = c.snapshot.TakenAt
	}
	c.snapshot = &snapshot

	return snapshot.Clone(), nil
}

// SetState pushes a partial write to the runtime. Writes are never served
// from cache; on success the cached snapshot is patched in place and a
// coarse communication event is appended to the timeline.
func (c *StateCache) SetState(ctx context.Context, partial domain.HardwareSetPayload) (bool, error) {
	if partial.Empty() {
		return false, nil
	}

	response, err := c.runtime.Send(ctx, domain.KindHardwareSet, partial, c.timeout)
	if err != nil {
		return false, fmt.Errorf("set hardware state: %w", err)
	}
	if !response.Success {
		return false, nil
	}

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		for _, write := range partial.Pins {
			pin := c.snapshot.Pins[write.Pin]
			pin.Value = write.Value
			if write.Mode != "" {
				pin.Mode = write.Mode
			}
			pin.LastChangedAt = now
			c.snapshot.Pins[write.Pin] = pin
		}
		for _, write := range partial.Sensors {
			sensor := c.snapshot.Sensors[write.ID]
			sensor.Value = write.Value
			sensor.LastReadAt = now
			c.snapshot.Sensors[write.ID] = sensor
		}
	}

	c.timeline = append(c.timeline, domain.HardwareEvent{
		Kind:     domain.EventCommunication,
		Target:   "hardware_set",
		NewValue: fmt.Sprintf("%d pin(s), %d sensor(s)", len(partial.Pins), len(partial.Sensors)),
		OffsetMs: now.Sub(c.sessionStart).Milliseconds(),
	})

	return true, nil
}

// Reset clears the cache and timeline after telling the runtime to return
// to a clean state. The next GetState always issues a fresh query.
func (c *StateCache) Reset(ctx context.Context) error {
	response, err := c.runtime.Send(ctx, domain.KindReset, nil, c.timeout)

	c.mu.Lock()
	c.snapshot = nil
	c.timeline = nil
	c.sessionStart = c.clock.Now()
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("reset runtime: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("reset runtime: %s", response.Error)
	}
	return nil
}

func (c *StateCache) AddEvent(event domain.HardwareEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.OffsetMs == 0 {
		event.OffsetMs = c.clock.Now().Sub(c.sessionStart).Milliseconds()
	}
	c.timeline = append(c.timeline, event)
}

func (c *StateCache) Timeline() []domain.HardwareEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.HardwareEvent, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// StartTimeline begins a fresh observation session.
func (c *StateCache) StartTimeline() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeline = nil
	c.sessionStart = c.clock.Now()
}
