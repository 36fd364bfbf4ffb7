package vm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/johnnohj/mu2-runtime/internal/domain"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

const maxResponseLineBytes = 1 << 20

type channelResult struct {
	response domain.RuntimeResponse
	err      error
}

type pendingRequest struct {
	done  chan channelResult
	timer *time.Timer
}

// Channel multiplexes request/response traffic over a single duplex stream
// to the virtual-runtime process. Messages are newline-delimited JSON and
// responses are matched to requests by correlation id, never by arrival
// order. The pending map is only ever touched by Send, the read loop, the
// per-request timeout, and Dispose.
type Channel struct {
	writer io.Writer
	clock  ports.Clock
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]*pendingRequest
	disposed bool
}

func NewChannel(stream io.ReadWriter, clock ports.Clock, logger *slog.Logger) *Channel {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Channel{
		writer:  stream,
		clock:   clock,
		logger:  logger.With("component", "vm.channel"),
		pending: map[string]*pendingRequest{},
	}
	go c.readLoop(stream)

	return c
}

func (c *Channel) Send(ctx context.Context, kind domain.MessageKind, payload any, timeout time.Duration) (domain.RuntimeResponse, error) {
	if !kind.Valid() {
		return domain.RuntimeResponse{}, fmt.Errorf("unknown message kind %q", kind)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	id := uuid.NewString()
	request := domain.NewRuntimeMessage(id, kind, payload, c.clock.Now())

	entry := &pendingRequest{done: make(chan channelResult, 1)}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return domain.RuntimeResponse{}, domain.ErrChannelDisposed
	}
	entry.timer = time.AfterFunc(timeout, func() { c.expire(id, kind) })
	c.pending[id] = entry
	c.mu.Unlock()

	if err := c.write(request); err != nil {
		c.remove(id)
		return domain.RuntimeResponse{}, fmt.Errorf("send %s: %w", kind, err)
	}

	select {
	case <-ctx.Done():
		c.remove(id)
		return domain.RuntimeResponse{}, ctx.Err()
	case result := <-entry.done:
		return result.response, result.err
	}
}

// Dispose rejects every still-pending request and refuses further sends.
func (c *Channel) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true

	for id, entry := range c.pending {
		entry.timer.Stop()
		entry.done <- channelResult{err: domain.ErrChannelDisposed}
		delete(c.pending, id)
	}
}

func (c *Channel) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) write(request domain.RuntimeMessage) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (c *Channel) readLoop(reader io.Reader) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var response domain.RuntimeResponse
		if err := json.Unmarshal(line, &response); err != nil {
			c.logger.Warn("discarding unparseable response line", "error", err)
			continue
		}

		c.mu.Lock()
		entry, ok := c.pending[response.ID]
		if ok {
			entry.timer.Stop()
			delete(c.pending, response.ID)
		}
		c.mu.Unlock()

		if !ok {
			// A response whose request was already reaped (timeout,
			// cancellation or dispose) must never resurrect it.
			c.logger.Debug("dropping late response", "id", response.ID)
			continue
		}

		entry.done <- channelResult{response: response}
	}
}

func (c *Channel) expire(id string, kind domain.MessageKind) {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	entry.done <- channelResult{err: fmt.Errorf("%s request %s: %w", kind, id, domain.ErrRequestTimeout)}
}

func (c *Channel) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.pending[id]; ok {
		entry.timer.Stop()
		delete(c.pending, id)
	}
}
