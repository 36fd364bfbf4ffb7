package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/johnnohj/mu2-runtime/internal/ports"
)

// Launcher spawns the virtual-hardware runtime as a child process wired up
// for stdio message traffic. The environment forces the Blinka shim to
// detect a generic PC board so device code runs without real hardware.
type Launcher struct {
	Command string
	Args    []string
	Env     []string
}

var _ ports.RuntimeLauncher = (*Launcher)(nil)

func NewLauncher(command string, args ...string) *Launcher {
	return &Launcher{Command: command, Args: args}
}

func (l *Launcher) Launch(ctx context.Context) (ports.RuntimeProcess, error) {
	if l.Command == "" {
		return nil, errors.New("runtime command is empty")
	}

	cmd := exec.CommandContext(ctx, l.Command, l.Args...)
	cmd.Env = append(os.Environ(),
		"BLINKA_FORCEBOARD=GENERIC_LINUX_PC",
		"BLINKA_FORCECHIP=GENERIC_X86",
		"MU2_VIRTUAL=1",
	)
	cmd.Env = append(cmd.Env, l.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", l.Command, err)
	}

	proc := &childProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		done:   make(chan struct{}),
	}

	go func() {
		proc.exitErr = cmd.Wait()
		close(proc.done)
	}()

	return proc, nil
}

type childProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	done    chan struct{}
	exitErr error

	killOnce sync.Once
}

func (p *childProcess) Stdin() io.Writer  { return p.stdin }
func (p *childProcess) Stdout() io.Reader { return p.stdout }

func (p *childProcess) Done() <-chan struct{} { return p.done }

func (p *childProcess) Err() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

func (p *childProcess) Terminate() error {
	_ = p.stdin.Close()
	if p.cmd.Process == nil {
		return errors.New("process not started")
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *childProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			err = p.cmd.Process.Kill()
		}
	})
	return err
}
