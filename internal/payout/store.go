package payout

import (
	"context"
	"time"
)

// Store persists Payout rows.
type Store interface {
	Create(ctx context.Context, p *Payout) (*Payout, error)
	Get(ctx context.Context, id int64) (*Payout, error)
	GetByIdempotencyKey(ctx context.Context, idemKey string) (*Payout, error)
	GetByProcessorID(ctx context.Context, processorPayoutID string) (*Payout, error)
	UpdateStatus(ctx context.Context, id int64, status Status, processorPayoutID, failReason string, processedAt *time.Time) (*Payout, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Payout, error)
}
