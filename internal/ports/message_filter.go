package ports

import (
	"context"

	"github.com/mikey/mail-classifier/internal/core"
)

// MessageFilter defines the interface for message filter front-ends
type MessageFilter interface {
	// ProcessMessage classifies one parsed message and returns the verdict,
	// with category UNK when no category reaches the configured threshold
	ProcessMessage(ctx context.Context, doc *core.Document) (core.CategoryScore, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
