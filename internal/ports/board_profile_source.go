package ports

import (
	"context"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

type BoardProfileSource interface {
	GetByID(ctx context.Context, id string) (domain.BoardProfile, error)
	List(ctx context.Context) ([]domain.BoardProfile, error)
}
