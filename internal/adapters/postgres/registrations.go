package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"eventcheckout/internal/domain"
)

// RegistrationStore records completed registrations. session_id carries
// a UNIQUE constraint so a redelivered payment callback is a no-op.
type RegistrationStore struct {
	repo *Repository
}

func NewRegistrationStore(repo *Repository) *RegistrationStore {
	return &RegistrationStore{repo: repo}
}

const maxConfirmationRetries = 3

// Insert writes the registration row. It returns false with a nil error
// when a row for the same session already exists. A collision on the
// confirmation number regenerates the number and retries a few times.
func (s *RegistrationStore) Insert(ctx context.Context, reg *domain.Registration) (bool, error) {
	for attempt := 0; ; attempt++ {
		tag, err := s.repo.pool.Exec(ctx, `
			INSERT INTO registrations (confirmation_number, event_id, session_id,
				first_name, last_name, email, phone, emergency_name, emergency_phone,
				amount_cents, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (session_id) DO NOTHING
		`, reg.ConfirmationNumber, reg.EventID, reg.SessionID,
			reg.Participant.FirstName, reg.Participant.LastName, reg.Participant.Email,
			reg.Participant.Phone, reg.Emergency.Name, reg.Emergency.Phone,
			reg.AmountCents, reg.CreatedAt)
		if err == nil {
			return tag.RowsAffected() > 0, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode &&
			pgErr.ConstraintName == "registrations_confirmation_number_key" &&
			attempt < maxConfirmationRetries {
			reg.ConfirmationNumber = domain.NewConfirmationNumber()
			continue
		}
		return false, errors.Mark(err, domain.ErrUnavailable)
	}
}

func (s *RegistrationStore) GetBySessionID(ctx context.Context, sessionID string) (*domain.Registration, error) {
	var reg domain.Registration
	err := s.repo.pool.QueryRow(ctx, `
		SELECT confirmation_number, event_id, session_id,
		       first_name, last_name, email, phone, emergency_name, emergency_phone,
		       amount_cents, created_at
		FROM registrations WHERE session_id = $1
	`, sessionID).Scan(&reg.ConfirmationNumber, &reg.EventID, &reg.SessionID,
		&reg.Participant.FirstName, &reg.Participant.LastName, &reg.Participant.Email,
		&reg.Participant.Phone, &reg.Emergency.Name, &reg.Emergency.Phone,
		&reg.AmountCents, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUnavailable)
	}
	return &reg, nil
}

func (s *RegistrationStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Registration, error) {
	rows, err := s.repo.pool.Query(ctx, `
		SELECT confirmation_number, event_id, session_id,
		       first_name, last_name, email, phone, emergency_name, emergency_phone,
		       amount_cents, created_at
		FROM registrations WHERE event_id = $1
		ORDER BY created_at ASC
	`, eventID)
	if err != nil {
		return nil, errors.Mark(err, domain.ErrUnavailable)
	}
	defer rows.Close()

	var regs []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.ConfirmationNumber, &reg.EventID, &reg.SessionID,
			&reg.Participant.FirstName, &reg.Participant.LastName, &reg.Participant.Email,
			&reg.Participant.Phone, &reg.Emergency.Name, &reg.Emergency.Phone,
			&reg.AmountCents, &reg.CreatedAt); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}
