package processor

import (
	"context"
	"database/sql"

	"github.com/pentedigital/extrashifty/internal/db"
)

// PostgresStore persists ProcessedWebhookEvent rows with a unique index on
// event_id enforcing at-most-once effect application, per the spec's
// webhook dispatcher contract.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Record(ctx context.Context, eventID, eventType, result string) (*ProcessedWebhookEvent, error) {
	e := &ProcessedWebhookEvent{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO processed_webhook_events (event_id, event_type, result)
		VALUES ($1, $2, $3)
		RETURNING id, event_id, event_type, result, created_at`,
		eventID, eventType, result,
	).Scan(&e.ID, &e.EventID, &e.EventType, &e.Result, &e.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) Get(ctx context.Context, eventID string) (*ProcessedWebhookEvent, error) {
	e := &ProcessedWebhookEvent{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, event_type, result, created_at
		FROM processed_webhook_events WHERE event_id = $1`, eventID,
	).Scan(&e.ID, &e.EventID, &e.EventType, &e.Result, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
