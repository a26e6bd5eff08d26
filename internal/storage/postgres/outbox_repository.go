package postgres

import (
	"context"
	"fmt"

	"github.com/carlosjeferson/e-commerce/internal/events"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	conn
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{conn: conn{pool: pool}}
}

// Insert joins the caller's transaction when there is one.
func (r *OutboxRepository) Insert(ctx context.Context, rec events.Record) error {
	const stmt = `
INSERT INTO outbox (event_id, type, key, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.exec(ctx, stmt, rec.EventID, rec.Type, rec.Key, []byte(rec.Payload), rec.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}
	return nil
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]events.Record, error) {
	const query = `
SELECT id, event_id, type, key, payload, created_at, sent_at
FROM outbox
WHERE sent_at IS NULL
ORDER BY id
LIMIT $1`

	rows, err := r.query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var rec events.Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Type, &rec.Key, &payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate outbox: %w", rows.Err())
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}
