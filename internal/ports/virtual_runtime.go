package ports

import (
	"context"
	"time"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

// VirtualRuntime is the application-facing surface of the virtual hardware
// runtime: a request/response channel to the isolated execution process.
type VirtualRuntime interface {
	Send(ctx context.Context, kind domain.MessageKind, payload any, timeout time.Duration) (domain.RuntimeResponse, error)
	IsHealthy(ctx context.Context) bool
}

// HardwareState is the throttled view over the virtual runtime's pin and
// sensor state, plus the per-session event timeline.
type HardwareState interface {
	GetState(ctx context.Context) (domain.HardwareSnapshot, error)
	SetState(ctx context.Context, partial domain.HardwareSetPayload) (bool, error)
	Reset(ctx context.Context) error
	AddEvent(event domain.HardwareEvent)
	Timeline() []domain.HardwareEvent
	StartTimeline()
}
