package serial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pkg/term"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const (
	DefaultBaud = 115200

	// Short read slices so a context cancellation is noticed quickly even
	// while the board is silent.
	readSlice = 50 * time.Millisecond
)

// Transport is a byte-stream connection to a board over a serial tty.
type Transport struct {
	tty  *term.Term
	port string
}

var _ ports.DeviceTransport = (*Transport)(nil)

func Open(port string, baud int) (*Transport, error) {
	if port == "" {
		return nil, errors.New("serial port is empty")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	tty, err := term.Open(port, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrTransport, port, err)
	}

	return &Transport{tty: tty, port: port}, nil
}

func (t *Transport) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.tty.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrTransport, t.port, err)
	}
	return nil
}

// Receive blocks until at least one byte arrives, the context is done, or
// the tty errors. Reads are sliced so cancellation stays responsive.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := t.tty.SetReadTimeout(readSlice); err != nil {
			return nil, fmt.Errorf("%w: set read timeout on %s: %v", domain.ErrTransport, t.port, err)
		}

		n, err := t.tty.Read(buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			return out, nil
		}
		if err != nil && ctx.Err() == nil {
			// A timed-out slice surfaces as an error with no data; loop
			// and try again until the context gives up.
			continue
		}
	}
}

func (t *Transport) Close() error {
	if err := t.tty.Restore(); err != nil {
		_ = t.tty.Close()
		return fmt.Errorf("restore %s: %w", t.port, err)
	}
	return t.tty.Close()
}
