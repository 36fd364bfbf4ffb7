package vm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

func TestSupervisorInitializeWaitsForReadiness(t *testing.T) {
	t.Parallel()

	launcher := newFakeLauncher(answerAll)
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    time.Second,
		ReadinessInterval: 10 * time.Millisecond,
	})

	require.NoError(t, supervisor.Initialize(context.Background()))
	defer func() { _ = supervisor.Dispose(context.Background()) }()

	assert.True(t, supervisor.IsHealthy(context.Background()))
	assert.Equal(t, 1, launcher.launches())
}

func TestSupervisorInitializeTwiceIsNoOp(t *testing.T) {
	t.Parallel()

	launcher := newFakeLauncher(answerAll)
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    time.Second,
		ReadinessInterval: 10 * time.Millisecond,
	})

	require.NoError(t, supervisor.Initialize(context.Background()))
	defer func() { _ = supervisor.Dispose(context.Background()) }()
	require.NoError(t, supervisor.Initialize(context.Background()))

	assert.Equal(t, 1, launcher.launches())
}

func TestSupervisorInitializeFailsWhenRuntimeNeverReady(t *testing.T) {
	t.Parallel()

	launcher := newFakeLauncher(answerNothing)
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    50 * time.Millisecond,
		ReadinessInterval: 10 * time.Millisecond,
		GracePeriod:       10 * time.Millisecond,
	})

	err := supervisor.Initialize(context.Background())
	require.ErrorIs(t, err, domain.ErrReadinessTimeout)

	// The failed process must have been torn down.
	assert.False(t, supervisor.IsHealthy(context.Background()))
	_, err = supervisor.Send(context.Background(), domain.KindQuery, nil, time.Second)
	assert.ErrorIs(t, err, domain.ErrRuntimeNotReady)
}

func TestSupervisorUnhealthyWithoutProcess(t *testing.T) {
	t.Parallel()

	supervisor := NewSupervisor(newFakeLauncher(answerAll), SupervisorOptions{})

	assert.False(t, supervisor.IsHealthy(context.Background()))
	_, err := supervisor.Send(context.Background(), domain.KindExecute, domain.ExecutePayload{Code: "1"}, time.Second)
	assert.ErrorIs(t, err, domain.ErrRuntimeNotReady)
}

func TestSupervisorReportsUnexpectedExit(t *testing.T) {
	t.Parallel()

	var exited atomic.Bool
	launcher := newFakeLauncher(answerAll)
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    time.Second,
		ReadinessInterval: 10 * time.Millisecond,
		OnExit:            func(error) { exited.Store(true) },
	})

	require.NoError(t, supervisor.Initialize(context.Background()))

	launcher.last().crash()

	assert.Eventually(t, func() bool { return exited.Load() }, time.Second, 5*time.Millisecond)
	assert.False(t, supervisor.IsHealthy(context.Background()))
	_, err := supervisor.Send(context.Background(), domain.KindQuery, nil, time.Second)
	assert.ErrorIs(t, err, domain.ErrRuntimeNotReady)
}

func TestSupervisorDisposeDoesNotFireOnExit(t *testing.T) {
	t.Parallel()

	var exited atomic.Bool
	launcher := newFakeLauncher(answerAll)
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    time.Second,
		ReadinessInterval: 10 * time.Millisecond,
		OnExit:            func(error) { exited.Store(true) },
	})

	require.NoError(t, supervisor.Initialize(context.Background()))
	require.NoError(t, supervisor.Dispose(context.Background()))

	time.Sleep(50 * time.Millisecond)
	assert.False(t, exited.Load())
	assert.True(t, launcher.last().terminated.Load())
}

func TestSupervisorDisposeKillsAfterGracePeriod(t *testing.T) {
	t.Parallel()

	launcher := newFakeLauncher(answerAll)
	launcher.ignoreTerminate = true
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    time.Second,
		ReadinessInterval: 10 * time.Millisecond,
		GracePeriod:       30 * time.Millisecond,
	})

	require.NoError(t, supervisor.Initialize(context.Background()))
	require.NoError(t, supervisor.Dispose(context.Background()))

	assert.True(t, launcher.last().killed.Load())
}

func TestSupervisorConfigureSendsBoardProfile(t *testing.T) {
	t.Parallel()

	launcher := newFakeLauncher(answerAll)
	supervisor := NewSupervisor(launcher, SupervisorOptions{
		StartupTimeout:    time.Second,
		ReadinessInterval: 10 * time.Millisecond,
	})

	require.NoError(t, supervisor.Initialize(context.Background()))
	defer func() { _ = supervisor.Dispose(context.Background()) }()

	require.NoError(t, supervisor.Configure(context.Background(), domain.GenericLinuxBoard()))
	assert.Equal(t, 1, launcher.last().kindCount(domain.KindConfigure))
}

// answerAll acknowledges every request; answerNothing swallows them so
// readiness probes time out.
func answerAll(request domain.RuntimeMessage) (domain.RuntimeResponse, bool) {
	return domain.RuntimeResponse{ID: request.ID, Success: true}, true
}

func answerNothing(domain.RuntimeMessage) (domain.RuntimeResponse, bool) {
	return domain.RuntimeResponse{}, false
}

type fakeLauncher struct {
	handler         func(domain.RuntimeMessage) (domain.RuntimeResponse, bool)
	ignoreTerminate bool

	mu    sync.Mutex
	procs []*fakeProcess
}

func newFakeLauncher(handler func(domain.RuntimeMessage) (domain.RuntimeResponse, bool)) *fakeLauncher {
	return &fakeLauncher{handler: handler}
}

func (l *fakeLauncher) Launch(context.Context) (ports.RuntimeProcess, error) {
	proc := newFakeProcess(l.handler, l.ignoreTerminate)

	l.mu.Lock()
	l.procs = append(l.procs, proc)
	l.mu.Unlock()

	return proc, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[len(l.procs)-1]
}

type fakeProcess struct {
	stdinReader  *io.PipeReader
	stdinWriter  *io.PipeWriter
	stdoutReader *io.PipeReader
	stdoutWriter *io.PipeWriter

	done            chan struct{}
	closeOnce       sync.Once
	ignoreTerminate bool
	terminated      atomic.Bool
	killed          atomic.Bool

	mu     sync.Mutex
	counts map[domain.MessageKind]int
}

func newFakeProcess(handler func(domain.RuntimeMessage) (domain.RuntimeResponse, bool), ignoreTerminate bool) *fakeProcess {
	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()

	proc := &fakeProcess{
		stdinReader:     stdinReader,
		stdinWriter:     stdinWriter,
		stdoutReader:    stdoutReader,
		stdoutWriter:    stdoutWriter,
		done:            make(chan struct{}),
		ignoreTerminate: ignoreTerminate,
		counts:          map[domain.MessageKind]int{},
	}

	go func() {
		scanner := bufio.NewScanner(stdinReader)
		for scanner.Scan() {
			var request domain.RuntimeMessage
			if err := json.Unmarshal(scanner.Bytes(), &request); err != nil {
				continue
			}

			proc.mu.Lock()
			proc.counts[request.Kind]++
			proc.mu.Unlock()

			if response, ok := handler(request); ok {
				data, _ := json.Marshal(response)
				_, _ = stdoutWriter.Write(append(data, '\n'))
			}
		}
	}()

	return proc
}

func (p *fakeProcess) Stdin() io.Writer      { return p.stdinWriter }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutReader }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Err() error            { return nil }

func (p *fakeProcess) Terminate() error {
	p.terminated.Store(true)
	if !p.ignoreTerminate {
		p.exit()
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit()
	return nil
}

func (p *fakeProcess) crash() { p.exit() }

func (p *fakeProcess) exit() {
	p.closeOnce.Do(func() {
		_ = p.stdinReader.Close()
		_ = p.stdoutWriter.Close()
		close(p.done)
	})
}

func (p *fakeProcess) kindCount(kind domain.MessageKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[kind]
}
