package ports

import (
	"context"
	"io"
)

// RuntimeProcess is a handle to one spawned virtual-runtime process.
type RuntimeProcess interface {
	Stdin() io.Writer
	Stdout() io.Reader
	// Done is closed once the process has exited; Err reports the exit
	// error after Done is closed.
	Done() <-chan struct{}
	Err() error
	Terminate() error
	Kill() error
}

type RuntimeLauncher interface {
	Launch(ctx context.Context) (RuntimeProcess, error)
}
