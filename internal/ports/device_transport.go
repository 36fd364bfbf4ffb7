package ports

import (
	"context"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

// DeviceTransport is a byte-stream connection to a physical board.
// Receive returns whatever bytes are available, blocking until data
// arrives, the context is done, or the connection is closed.
type DeviceTransport interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// DevicePoller reads the current pin/sensor values from a live device.
type DevicePoller interface {
	Poll(ctx context.Context) (domain.HardwareSnapshot, error)
}

// DeviceRunner executes code on a physical board and returns whatever
// output was collected, even when it also returns an error.
type DeviceRunner interface {
	Run(ctx context.Context, code string) (string, error)
}
