package application

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	// DefaultSyncInterval keeps end-to-end twin staleness inside the 250ms
	// responsiveness budget.
	DefaultSyncInterval = 50 * time.Millisecond

	defaultPollTimeout    = time.Second
	defaultMaxConcurrency = 8
)

// Reconciler keeps one DeviceTwin per tracked device synchronized with the
// live board. Physical state is authoritative: on any disagreement the twin
// is overwritten, never the physical side.
type Reconciler struct {
	interval    time.Duration
	pollTimeout time.Duration
	maxPolls    int
	clock       ports.Clock
	logger      *slog.Logger
	onChange    func(domain.TwinChange)

	mu      sync.Mutex
	devices map[string]ports.DevicePoller
	twins   map[string]*domain.DeviceTwin

	ticking atomic.Bool
}

type ReconcilerOptions struct {
	Interval    time.Duration
	PollTimeout time.Duration
	// MaxPolls bounds how many devices are polled concurrently per tick.
	MaxPolls int
	Clock    ports.Clock
	Logger   *slog.Logger
	OnChange func(domain.TwinChange)
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSyncInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = defaultMaxConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Reconciler{
		interval:    opts.Interval,
		pollTimeout: opts.PollTimeout,
		maxPolls:    opts.MaxPolls,
		clock:       opts.Clock,
		logger:      opts.Logger.With("component", "reconciler"),
		onChange:    opts.OnChange,
		devices:     map[string]ports.DevicePoller{},
		twins:       map[string]*domain.DeviceTwin{},
	}
}

func (r *Reconciler) Track(deviceID string, poller ports.DevicePoller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices[deviceID] = poller
	if _, ok := r.twins[deviceID]; !ok {
		twin := domain.NewDeviceTwin(deviceID)
		r.twins[deviceID] = &twin
	}
}

func (r *Reconciler) Untrack(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.devices, deviceID)
	delete(r.twins, deviceID)
}

// Twin returns a read-only copy; the reconciler retains exclusive ownership
// of the live twin.
func (r *Reconciler) Twin(deviceID string) (domain.DeviceTwin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	twin, ok := r.twins[deviceID]
	if !ok {
		return domain.DeviceTwin{}, domain.ErrDeviceNotTracked
	}
	return twin.Clone(), nil
}

func (r *Reconciler) Twins() []domain.DeviceTwin {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.DeviceTwin, 0, len(r.twins))
	for _, twin := range r.twins {
		out = append(out, twin.Clone())
	}
	return out
}

// Run loops until the context is done. A tick that starts while the
// previous tick's polls are still in flight is skipped rather than allowed
// to pile up.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.ticking.CompareAndSwap(false, true) {
				continue
			}
			go func() {
				defer r.ticking.Store(false)
				r.Tick(ctx)
			}()
		}
	}
}

// Tick polls every tracked device concurrently and reconciles its twin.
// One device failing never aborts reconciliation of the others.
func (r *Reconciler) Tick(ctx context.Context) {
	r.mu.Lock()
	pollers := make(map[string]ports.DevicePoller, len(r.devices))
	for id, poller := range r.devices {
		pollers[id] = poller
	}
	r.mu.Unlock()

	sem := make(chan struct{}, r.maxPolls)
	var wg sync.WaitGroup
	for deviceID, poller := range pollers {
		wg.Add(1)
		go func(deviceID string, poller ports.DevicePoller) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pollCtx, cancel := context.WithTimeout(ctx, r.pollTimeout)
			defer cancel()

			snapshot, err := poller.Poll(pollCtx)
			if err != nil {
				r.logger.Warn("device poll failed", "device", deviceID, "error", err)
				return
			}

			if change, changed := r.apply(deviceID, snapshot); changed && r.onChange != nil {
				r.onChange(change)
			}
		}(deviceID, poller)
	}
	wg.Wait()
}

// apply overwrites the twin with the physical reading wherever they
// disagree and stamps LastSyncAt.
func (r *Reconciler) apply(deviceID string, snapshot domain.HardwareSnapshot) (domain.TwinChange, bool) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	twin, ok := r.twins[deviceID]
	if !ok {
		return domain.TwinChange{}, false
	}

	var events []domain.HardwareEvent

	for pinID, live := range snapshot.Pins {
		stored, exists := twin.Pins[pinID]
		if exists && stored.Value == live.Value && (live.Mode == "" || stored.Mode == live.Mode) {
			continue
		}

		updated := stored
		updated.Value = live.Value
		if live.Mode != "" {
			updated.Mode = live.Mode
		}
		updated.LastChangedAt = now
		twin.Pins[pinID] = updated

		events = append(events, domain.HardwareEvent{
			Kind:          domain.EventPinChange,
			Target:        pinID,
			PreviousValue: strconv.FormatBool(stored.Value),
			NewValue:      strconv.FormatBool(live.Value),
		})
	}

	for sensorID, live := range snapshot.Sensors {
		stored, exists := twin.Sensors[sensorID]
		if exists && stored.Value == live.Value {
			continue
		}

		twin.Sensors[sensorID] = domain.SensorState{Value: live.Value, LastReadAt: now}

		events = append(events, domain.HardwareEvent{
			Kind:          domain.EventSensorReading,
			Target:        sensorID,
			PreviousValue: strconv.FormatFloat(stored.Value, 'f', -1, 64),
			NewValue:      strconv.FormatFloat(live.Value, 'f', -1, 64),
		})
	}

	twin.LastSyncAt = now

	if len(events) == 0 {
		return domain.TwinChange{}, false
	}
	return domain.TwinChange{DeviceID: deviceID, ChangedAt: now, Events: events}, true
}
