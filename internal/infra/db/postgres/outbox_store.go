package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "rentspace/internal/app/outbox"
	"rentspace/internal/infra/outbox"
)

// OutboxStore writes event records inside the caller's transaction and lets
// relay workers claim them with SKIP LOCKED.
type OutboxStore struct {
	pool *pgxpool.Pool
	wake chan struct{}
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool, wake: make(chan struct{}, 1)}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers := record.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := conn(ctx, s.pool).Exec(ctx,
		`INSERT INTO outbox (id, name, payload, occurred_at, aggregate, headers, state, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.Name, record.Payload, record.OccurredAt, record.Aggregate, headers, outbox.StateNew, time.Now().UTC(),
	)
	return err
}

func (s *OutboxStore) Flush(context.Context) error {
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *OutboxStore) Wake() <-chan struct{} {
	return s.wake
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*outbox.Message, error) {
	var msg outbox.Message
	err := s.pool.QueryRow(ctx,
		`UPDATE outbox SET state = $1, claimed_by = $2, claimed_at = now()
		WHERE id = (
			SELECT id FROM outbox
			WHERE state IN ($3, $4) AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		outbox.StateClaimed, workerID, outbox.StateNew, outbox.StateFailed,
	).Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &msg.Headers, &msg.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg.OccurredAt = msg.OccurredAt.UTC()
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET state = $1, sent_at = now() WHERE id = $2`, outbox.StateSent, id)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox SET state = $1, next_attempt_at = $2, last_error = $3, attempts = attempts + 1 WHERE id = $4`,
		outbox.StateFailed, next, errMsg, id,
	)
	return err
}

var (
	_ appoutbox.Outbox = (*OutboxStore)(nil)
	_ outbox.Store     = (*OutboxStore)(nil)
)
