package dispute

import (
	"context"
	"time"
)

// Store persists Dispute rows.
type Store interface {
	Create(ctx context.Context, d *Dispute) (*Dispute, error)
	Get(ctx context.Context, id int64) (*Dispute, error)
	GetOpenOrUnderReviewForShift(ctx context.Context, shiftID int64) (*Dispute, error)
	AppendEvidence(ctx context.Context, id int64, entry string) (*Dispute, error)
	Resolve(ctx context.Context, id int64, status Status, resolution Resolution, splitPct *int, adminNotes string, resolvedAt time.Time) (*Dispute, error)
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]*Dispute, error)
}
