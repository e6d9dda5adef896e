package services

import (
	"context"
	"errors"
	"time"

	"price-alert-engine/internal/models"
)

// ErrTransportFailure wraps any upstream call failure. The failed item
// is skipped for the cycle and nothing is cached.
var ErrTransportFailure = errors.New("upstream transport failure")

// Repository is the persistence collaborator. The engine only reads
// active conditions and writes back status transitions; storage details
// are out of its hands.
type Repository interface {
	ListActive(ctx context.Context) ([]models.Condition, error)
	MarkTriggered(ctx context.Context, id string, at time.Time) error
	Disable(ctx context.Context, id string) error

	// Alert management for the conversational layer
	Create(ctx context.Context, cond *models.Condition) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Condition, error)
	Delete(ctx context.Context, id, ownerID string) (bool, error)

	Ping(ctx context.Context) error
}

// Notifier delivers one triggered evaluation to its owner. A delivery
// failure is recorded by the scheduler and not retried within the cycle.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, result models.EvaluationResult) error
}

// Transport is the raw upstream market data call, without caching or
// admission control. Implementations make a single attempt.
type Transport interface {
	FetchQuote(ctx context.Context, symbol string) (models.Quote, error)
}

// QuoteFetcher is what the scheduler sees of the fetch client.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
}
