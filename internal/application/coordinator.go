package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	defaultExecuteTimeout = 30 * time.Second
	postTimeoutResetGrace = 2 * time.Second
)

type ExecuteOptions struct {
	// ExecutionID is the logical id used for cancellation; generated when
	// empty.
	ExecutionID string
	Timeout     time.Duration
	Monitor     bool
	Mode        domain.ExecMode
}

// Outcome is the single unit an execution produces: one result for a
// single-target run, the full triple for a dual run.
type Outcome struct {
	ExecutionID string
	Physical    *domain.ExecutionResult
	Virtual     *domain.ExecutionResult
	Comparison  *domain.ComparisonResult
	Canceled    bool
}

// Coordinator runs device code against the physical board, the virtual
// runtime, or both. Execution faults never escape as errors: every leg
// yields a populated ExecutionResult.
type Coordinator struct {
	physical ports.DeviceRunner
	runtime  ports.VirtualRuntime
	state    ports.HardwareState
	clock    ports.Clock
	logger   *slog.Logger
	onResult func(Outcome)

	mu     sync.Mutex
	active map[string]struct{}
}

type CoordinatorOptions struct {
	Physical ports.DeviceRunner
	Runtime  ports.VirtualRuntime
	State    ports.HardwareState
	Clock    ports.Clock
	Logger   *slog.Logger
	// OnResult receives every non-canceled outcome.
	OnResult func(Outcome)
}

func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Coordinator{
		physical: opts.Physical,
		runtime:  opts.Runtime,
		state:    opts.State,
		clock:    opts.Clock,
		logger:   opts.Logger.With("component", "coordinator"),
		onResult: opts.OnResult,
		active:   map[string]struct{}{},
	}
}

func (c *Coordinator) Execute(ctx context.Context, code string, target domain.ExecutionTarget, opts ExecuteOptions) (Outcome, error) {
	if !target.Valid() {
		return Outcome{}, fmt.Errorf("unknown execution target %q", target)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultExecuteTimeout
	}
	if opts.Mode == "" {
		opts.Mode = domain.ExecModeFile
	}
	if opts.ExecutionID == "" {
		opts.ExecutionID = uuid.NewString()
	}

	c.begin(opts.ExecutionID)

	outcome := Outcome{ExecutionID: opts.ExecutionID}
	switch target {
	case domain.TargetPhysical:
		result := c.executePhysical(ctx, code, opts)
		outcome.Physical = &result
	case domain.TargetVirtual:
		result := c.executeVirtual(ctx, code, opts)
		outcome.Virtual = &result
	case domain.TargetDual:
		// Dual mode exists for comparative diagnostics, so both legs run
		// to completion; the faster side is never used to cancel the
		// slower one.
		var physical, virtual domain.ExecutionResult
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			physical = c.executePhysical(ctx, code, opts)
		}()
		go func() {
			defer wg.Done()
			virtual = c.executeVirtual(ctx, code, opts)
		}()
		wg.Wait()

		comparison := Compare(physical, virtual)
		outcome.Physical = &physical
		outcome.Virtual = &virtual
		outcome.Comparison = &comparison
	}

	if !c.finish(opts.ExecutionID) {
		outcome.Canceled = true
		return outcome, nil
	}

	if c.onResult != nil {
		c.onResult(outcome)
	}
	return outcome, nil
}

// Cancel marks an in-flight execution so its outcome is suppressed from
// listeners. Work already dispatched to the board or the runtime is not
// interrupted.
func (c *Coordinator) Cancel(executionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[executionID]; !ok {
		return false
	}
	delete(c.active, executionID)
	return true
}

func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func (c *Coordinator) begin(executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[executionID] = struct{}{}
}

func (c *Coordinator) finish(executionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[executionID]; !ok {
		return false
	}
	delete(c.active, executionID)
	return true
}

func (c *Coordinator) executePhysical(ctx context.Context, code string, opts ExecuteOptions) domain.ExecutionResult {
	result := domain.ExecutionResult{Environment: domain.EnvPhysical}

	if c.physical == nil {
		result.Error = "no physical device transport configured"
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := c.clock.Now()
	output, err := c.physical.Run(runCtx, code)
	result.ElapsedMs = c.clock.Now().Sub(start).Milliseconds()
	result.Output = output

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}

func (c *Coordinator) executeVirtual(ctx context.Context, code string, opts ExecuteOptions) domain.ExecutionResult {
	result := domain.ExecutionResult{Environment: domain.EnvVirtual}

	if c.runtime == nil {
		result.Error = domain.ErrRuntimeNotReady.Error()
		return result
	}

	if opts.Monitor && c.state != nil {
		c.state.StartTimeline()
	}

	payload := domain.ExecutePayload{
		Code:      code,
		Mode:      opts.Mode,
		Monitor:   opts.Monitor,
		TimeoutMs: opts.Timeout.Milliseconds(),
	}

	start := c.clock.Now()
	response, err := c.runtime.Send(ctx, domain.KindExecute, payload, opts.Timeout)
	result.ElapsedMs = c.clock.Now().Sub(start).Milliseconds()

	switch {
	case err != nil:
		result.Error = err.Error()
		if errors.Is(err, domain.ErrRequestTimeout) {
			c.resetAfterTimeout()
		}
	case !response.Success:
		result.Error = response.Error
		result.Output = resultOutput(response)
		if response.ElapsedMs > 0 {
			result.ElapsedMs = response.ElapsedMs
		}
	default:
		result.Success = true
		result.Output = resultOutput(response)
		if response.ElapsedMs > 0 {
			result.ElapsedMs = response.ElapsedMs
		}
	}

	if opts.Monitor && c.state != nil {
		result.HardwareChanges = c.state.Timeline()
	}

	return result
}

// resetAfterTimeout returns the runtime to a known state after an execute
// request expired: the script may still be running inside the child and
// must not leak into the next session.
func (c *Coordinator) resetAfterTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeoutResetGrace)
	defer cancel()

	if _, err := c.runtime.Send(ctx, domain.KindReset, nil, postTimeoutResetGrace); err != nil {
		c.logger.Warn("post-timeout reset failed", "error", err)
	}
}

func resultOutput(response domain.RuntimeResponse) string {
	if response.Result == nil {
		return ""
	}
	output, _ := response.Result["output"].(string)
	return output
}
