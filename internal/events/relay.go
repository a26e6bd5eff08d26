package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Relay results reported to the observer.
const (
	ResultPublished = "published"
	ResultFailed    = "failed"
)

type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

type RelayObserver interface {
	ObserveOutbox(result string)
}

// Relay moves committed outbox records to a Publisher. Delivery is at least
// once: a record published but not yet marked sent is published again on the
// next poll.
type Relay struct {
	store     OutboxStore
	publisher Publisher
	logger    *slog.Logger
	observer  RelayObserver
	interval  time.Duration
	batchSize int
}

type RelayOption func(*Relay)

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithRelayLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithRelayObserver(o RelayObserver) RelayOption {
	return func(r *Relay) {
		r.observer = o
	}
}

func NewRelay(store OutboxStore, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Flush publishes one batch of pending records in id order and returns how
// many were marked sent. It stops at the first publish failure so records
// with the same key keep their order.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range pending {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			r.observe(ResultFailed)
			return sent, err
		}
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		r.observe(ResultPublished)
		r.logger.Debug("outbox record published", "id", rec.ID, "type", rec.Type, "key", rec.Key)
		sent++
	}
	return sent, nil
}

func (r *Relay) observe(result string) {
	if r.observer != nil {
		r.observer.ObserveOutbox(result)
	}
}
