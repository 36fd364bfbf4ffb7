package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	defaultStartupTimeout    = 10 * time.Second
	defaultReadinessInterval = 200 * time.Millisecond
	defaultRequestTimeout    = 5 * time.Second
	defaultGracePeriod       = 3 * time.Second
)

type SupervisorOptions struct {
	StartupTimeout    time.Duration
	ReadinessInterval time.Duration
	RequestTimeout    time.Duration
	GracePeriod       time.Duration
	// OnExit fires when the process exits without Dispose having been
	// requested. The supervisor never restarts on its own.
	OnExit func(err error)
	Clock  ports.Clock
	Logger *slog.Logger
}

func (o *SupervisorOptions) applyDefaults() {
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = defaultStartupTimeout
	}
	if o.ReadinessInterval <= 0 {
		o.ReadinessInterval = defaultReadinessInterval
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = defaultGracePeriod
	}
	if o.Clock == nil {
		o.Clock = ports.SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Supervisor owns the single virtual-runtime process: at most one live
// process per instance, all requests multiplexed through one Channel.
type Supervisor struct {
	launcher ports.RuntimeLauncher
	opts     SupervisorOptions
	logger   *slog.Logger

	mu        sync.Mutex
	proc      ports.RuntimeProcess
	channel   *Channel
	disposing bool
}

var _ ports.VirtualRuntime = (*Supervisor)(nil)

func NewSupervisor(launcher ports.RuntimeLauncher, opts SupervisorOptions) *Supervisor {
	opts.applyDefaults()

	return &Supervisor{
		launcher: launcher,
		opts:     opts,
		logger:   opts.Logger.With("component", "vm.supervisor"),
	}
}

type processStream struct {
	io.Reader
	io.Writer
}

// Initialize spawns the runtime process and polls it until it reports
// ready. Calling Initialize while a process is already live is a no-op.
func (s *Supervisor) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.proc != nil {
		s.mu.Unlock()
		return nil
	}

	proc, err := s.launcher.Launch(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", domain.ErrProcessSpawn, err)
	}

	channel := NewChannel(processStream{Reader: proc.Stdout(), Writer: proc.Stdin()}, s.opts.Clock, s.logger)
	s.proc = proc
	s.channel = channel
	s.disposing = false
	s.mu.Unlock()

	go s.watch(proc, channel)

	if err := s.awaitReady(ctx, channel); err != nil {
		_ = s.Dispose(ctx)
		return err
	}

	s.logger.Info("virtual runtime ready")
	return nil
}

func (s *Supervisor) awaitReady(ctx context.Context, channel *Channel) error {
	deadline := s.opts.Clock.Now().Add(s.opts.StartupTimeout)

	for {
		probeCtx, cancel := context.WithTimeout(ctx, s.opts.ReadinessInterval)
		response, err := channel.Send(probeCtx, domain.KindQuery, domain.QueryPayload{Probe: "ready"}, s.opts.ReadinessInterval)
		cancel()
		if err == nil && response.Success {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.opts.Clock.Now().After(deadline) {
			return fmt.Errorf("%w after %s", domain.ErrReadinessTimeout, s.opts.StartupTimeout)
		}

		timer := time.NewTimer(s.opts.ReadinessInterval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) watch(proc ports.RuntimeProcess, channel *Channel) {
	<-proc.Done()

	s.mu.Lock()
	requested := s.disposing
	if s.proc == proc {
		s.proc = nil
		s.channel = nil
	}
	s.mu.Unlock()

	channel.Dispose()

	if requested {
		return
	}

	s.logger.Warn("virtual runtime exited unexpectedly", "error", proc.Err())
	if s.opts.OnExit != nil {
		s.opts.OnExit(proc.Err())
	}
}

// Send forwards a request through the live channel.
func (s *Supervisor) Send(ctx context.Context, kind domain.MessageKind, payload any, timeout time.Duration) (domain.RuntimeResponse, error) {
	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()

	if channel == nil {
		return domain.RuntimeResponse{}, domain.ErrRuntimeNotReady
	}
	if timeout <= 0 {
		timeout = s.opts.RequestTimeout
	}

	return channel.Send(ctx, kind, payload, timeout)
}

// IsHealthy reports false rather than erroring when the process is absent
// or the health probe fails.
func (s *Supervisor) IsHealthy(ctx context.Context) bool {
	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()

	if channel == nil {
		return false
	}

	response, err := channel.Send(ctx, domain.KindQuery, domain.QueryPayload{Probe: "health"}, s.opts.RequestTimeout)
	return err == nil && response.Success
}

func (s *Supervisor) Configure(ctx context.Context, board domain.BoardProfile) error {
	response, err := s.Send(ctx, domain.KindConfigure, domain.ConfigurePayload{Board: board}, s.opts.RequestTimeout)
	if err != nil {
		return fmt.Errorf("configure board %s: %w", board.ID, err)
	}
	if !response.Success {
		return fmt.Errorf("configure board %s: %s", board.ID, response.Error)
	}
	return nil
}

// Dispose asks the process to exit and kills it after the grace period.
func (s *Supervisor) Dispose(ctx context.Context) error {
	s.mu.Lock()
	proc := s.proc
	channel := s.channel
	if proc == nil {
		s.mu.Unlock()
		return nil
	}
	s.disposing = true
	s.mu.Unlock()

	if err := proc.Terminate(); err != nil {
		s.logger.Debug("graceful termination failed, killing", "error", err)
		_ = proc.Kill()
	}

	timer := time.NewTimer(s.opts.GracePeriod)
	defer timer.Stop()
	select {
	case <-proc.Done():
	case <-ctx.Done():
		_ = proc.Kill()
	case <-timer.C:
		s.logger.Warn("virtual runtime ignored termination, killing")
		_ = proc.Kill()
		<-proc.Done()
	}

	channel.Dispose()

	s.mu.Lock()
	if s.proc == proc {
		s.proc = nil
		s.channel = nil
	}
	s.mu.Unlock()

	return nil
}
