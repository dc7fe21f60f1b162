package checkout

import (
	"context"

	"eventcheckout/internal/adapters/payment"
	"eventcheckout/internal/domain"
)

// Inventory is the event capacity store plus the atomic reservation
// engine over it.
type Inventory interface {
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	CheckAvailability(ctx context.Context, eventID string) (domain.Availability, error)
	ReserveTicket(ctx context.Context, eventID string) (bool, error)
}

// VoucherLedger is the single-use code store.
type VoucherLedger interface {
	Insert(ctx context.Context, v domain.Voucher) error
	Get(ctx context.Context, code string) (*domain.Voucher, error)
	Redeem(ctx context.Context, code, eventID string) error
}

// RegistrationRecorder persists completed registrations. Insert returns
// false when a row for the session already exists (idempotent no-op).
type RegistrationRecorder interface {
	Insert(ctx context.Context, reg *domain.Registration) (bool, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.Registration, error)
}

// PaymentGateway is the external hosted-checkout provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
	VerifyCallback(rawBody []byte, signature string) (*payment.CallbackEvent, error)
}

// AvailabilityCache is an optional read cache in front of the inventory.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, eventID string) (domain.Availability, bool)
	SetAvailability(ctx context.Context, eventID string, a domain.Availability) error
	InvalidateAvailability(ctx context.Context, eventID string) error
}

// Mailer, ContactSync, EventPublisher and Auditor are best-effort
// collaborators. Their failures are logged and never surface to the
// request.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type ContactSync interface {
	UpsertContact(ctx context.Context, email string, attributes map[string]string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type Auditor interface {
	LogReservation(ctx context.Context, eventID, sessionID string) error
	LogRedemption(ctx context.Context, v *domain.Voucher, eventID string) error
	LogRegistration(ctx context.Context, reg *domain.Registration) error
}
