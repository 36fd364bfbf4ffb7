package repl

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

// Raw-REPL control bytes, per the MicroPython/CircuitPython convention.
const (
	ctrlA = "\x01"
	ctrlB = "\x02"
	ctrlC = "\x03"
	ctrlD = "\x04"
)

const rawPrompt = "raw REPL; CTRL-B to exit"

// Session drives one board over a byte-stream transport using the raw-REPL
// protocol: enter raw mode, send code, execute, then collect streamed
// output until the end-of-execution marker.
type Session struct {
	transport ports.DeviceTransport
}

var _ ports.DeviceRunner = (*Session)(nil)

func NewSession(transport ports.DeviceTransport) *Session {
	return &Session{transport: transport}
}

// Run executes code on the board and returns whatever output was collected,
// including on failure.
func (s *Session) Run(ctx context.Context, code string) (string, error) {
	// Interrupt anything already running, then enter raw mode.
	if err := s.transport.Send(ctx, []byte("\r"+ctrlC+ctrlC)); err != nil {
		return "", fmt.Errorf("%w: interrupt: %v", domain.ErrTransport, err)
	}
	if err := s.transport.Send(ctx, []byte("\r"+ctrlA)); err != nil {
		return "", fmt.Errorf("%w: enter raw repl: %v", domain.ErrTransport, err)
	}
	if err := s.transport.Send(ctx, []byte(code)); err != nil {
		return "", fmt.Errorf("%w: send code: %v", domain.ErrTransport, err)
	}
	if err := s.transport.Send(ctx, []byte(ctrlD)); err != nil {
		return "", fmt.Errorf("%w: start execution: %v", domain.ErrTransport, err)
	}

	output, deviceErr, err := s.collect(ctx)

	// Best effort back to the friendly REPL; the board may already be gone.
	_ = s.transport.Send(context.WithoutCancel(ctx), []byte(ctrlB))

	if err != nil {
		return output, err
	}
	if deviceErr != "" {
		return output, fmt.Errorf("device reported: %s", strings.TrimSpace(deviceErr))
	}
	return output, nil
}

// collect accumulates streamed bytes until the \x04<error>\x04 end marker.
func (s *Session) collect(ctx context.Context) (string, string, error) {
	var buf strings.Builder

	for {
		chunk, err := s.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return splitMarkerless(buf.String()), "", ctx.Err()
			}
			return splitMarkerless(buf.String()), "", fmt.Errorf("%w: read output: %v", domain.ErrTransport, err)
		}
		buf.Write(chunk)

		raw := buf.String()
		first := strings.Index(raw, ctrlD)
		if first < 0 {
			continue
		}
		second := strings.Index(raw[first+1:], ctrlD)
		if second < 0 {
			continue
		}

		output := trimEcho(raw[:first])
		deviceErr := raw[first+1 : first+1+second]
		return output, deviceErr, nil
	}
}

// trimEcho removes the raw-mode acknowledgement and prompt noise that the
// board emits before the program's own output.
func trimEcho(raw string) string {
	raw = strings.ReplaceAll(raw, rawPrompt, "")
	if idx := strings.Index(raw, "OK"); idx >= 0 {
		raw = raw[idx+2:]
	}
	return strings.TrimLeft(raw, "\r\n>")
}

func splitMarkerless(raw string) string {
	if idx := strings.Index(raw, ctrlD); idx >= 0 {
		raw = raw[:idx]
	}
	return trimEcho(raw)
}
