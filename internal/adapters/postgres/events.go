package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"eventcheckout/internal/domain"
)

// EventStore is the per-event capacity store. sold_count is incremented
// only by ReserveTicket, under an exclusive row lock.
type EventStore struct {
	repo *Repository
}

func NewEventStore(repo *Repository) *EventStore {
	return &EventStore{repo: repo}
}

// EnsureEvent inserts the event if it does not exist yet. Capacity and
// price of an existing event are left untouched; there is no
// administrative inventory correction path.
func (s *EventStore) EnsureEvent(ctx context.Context, e domain.Event) error {
	_, err := s.repo.pool.Exec(ctx, `
		INSERT INTO events (event_id, name, event_date, total_capacity, sold_count, price_cents)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, e.ID, e.Name, e.Date, e.TotalCapacity, e.PriceCents)
	if err != nil {
		return errors.Wrap(err, "ensure event")
	}
	return nil
}

func (s *EventStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var e domain.Event
	err := s.repo.pool.QueryRow(ctx, `
		SELECT event_id, name, event_date, total_capacity, sold_count, price_cents
		FROM events WHERE event_id = $1
	`, eventID).Scan(&e.ID, &e.Name, &e.Date, &e.TotalCapacity, &e.SoldCount, &e.PriceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUnavailable)
	}
	return &e, nil
}

// CheckAvailability is a plain read. It never locks; the atomic reserve
// is the real guard against overselling.
func (s *EventStore) CheckAvailability(ctx context.Context, eventID string) (domain.Availability, error) {
	e, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.Availability{Available: e.Remaining(), Total: e.TotalCapacity}, nil
}

// ReserveTicket atomically claims one unit of capacity. It locks the
// event row with SELECT ... FOR UPDATE, re-reads the counters under the
// lock, and increments sold_count only if capacity remains. Concurrent
// callers serialize on the lock; the first to acquire it wins the last
// unit. A false return means the race was lost or the event is sold
// out, which is a normal outcome and must not be retried.
func (s *EventStore) ReserveTicket(ctx context.Context, eventID string) (bool, error) {
	reserved := false
	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		var sold, total int
		err := tx.QueryRow(ctx, `
			SELECT sold_count, total_capacity
			FROM events WHERE event_id = $1
			FOR UPDATE
		`, eventID).Scan(&sold, &total)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if sold >= total {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			UPDATE events SET sold_count = sold_count + 1 WHERE event_id = $1
		`, eventID); err != nil {
			return err
		}
		reserved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return reserved, nil
}
