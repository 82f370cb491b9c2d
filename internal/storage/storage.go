package storage

import (
	"context"

	"cpamm/internal/model"
)

// Storage defines a sink for committed engine events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.Event) error
}
