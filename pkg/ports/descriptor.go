package ports

import (
	"context"

	"github.com/aretw0/nova/pkg/domain"
)

// DescriptorSource supplies the ranked modules a session is seeded from.
// Discovery is the host's business; the core only consumes the list.
type DescriptorSource interface {
	Modules(ctx context.Context) ([]domain.Module, error)
}
