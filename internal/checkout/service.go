package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"eventcheckout/internal/adapters/payment"
	"eventcheckout/internal/domain"
	"eventcheckout/internal/observability"
)

// SideEffects groups the best-effort collaborators. Any field may be
// nil; a nil collaborator is simply skipped.
type SideEffects struct {
	Mailer    Mailer
	Contacts  ContactSync
	Publisher EventPublisher
	Auditor   Auditor
}

// URLs are the gateway redirect targets for the hosted checkout page.
type URLs struct {
	Success string
	Cancel  string
}

// Service sequences availability check, reservation, and either payment
// session creation or voucher redemption. All cross-request correctness
// is delegated to the stores' row locking; the service itself holds no
// mutable state.
type Service struct {
	inventory     Inventory
	vouchers      VoucherLedger
	registrations RegistrationRecorder
	gateway       PaymentGateway
	cache         AvailabilityCache
	effects       SideEffects
	urls          URLs
	logger        observability.Logger
}

func NewService(
	inventory Inventory,
	vouchers VoucherLedger,
	registrations RegistrationRecorder,
	gateway PaymentGateway,
	cache AvailabilityCache,
	effects SideEffects,
	urls URLs,
	logger observability.Logger,
) *Service {
	return &Service{
		inventory:     inventory,
		vouchers:      vouchers,
		registrations: registrations,
		gateway:       gateway,
		cache:         cache,
		effects:       effects,
		urls:          urls,
		logger:        logger,
	}
}

type CheckoutRequest struct {
	EventID     string
	Participant domain.Participant
	Emergency   domain.EmergencyContact
}

type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

type VoucherCheckoutRequest struct {
	EventID     string
	Participant domain.Participant
	VoucherCode string
}

type VoucherRegistration struct {
	ConfirmationNumber string
	SessionID          string
}

type VoucherValidation struct {
	Valid     bool
	ValueType string
}

type IssueVoucherRequest struct {
	PurchaserEmail string
	RecipientEmail string
	Message        string
	ValueType      string
	OrderID        string
}

// Availability reports remaining capacity, serving from the cache when
// a fresh snapshot exists.
func (s *Service) Availability(ctx context.Context, eventID string) (domain.Availability, error) {
	if eventID == "" {
		return domain.Availability{}, invalidInput("event id is required")
	}
	if s.cache != nil {
		if a, ok := s.cache.GetAvailability(ctx, eventID); ok {
			return a, nil
		}
	}
	a, err := s.inventory.CheckAvailability(ctx, eventID)
	if err != nil {
		return domain.Availability{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetAvailability(ctx, eventID, a); err != nil {
			s.logger.WithError(err).Debug("availability cache set failed")
		}
	}
	return a, nil
}

// CreateCheckout runs the paid flow: pre-check, atomic reserve, then a
// gateway session carrying the full registration payload in metadata.
// The registration row itself is written later by the payment callback.
// An abandoned payment leaves the reserved unit consumed; that window
// is accepted and not compensated here.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := validateParticipant(req.EventID, req.Participant); err != nil {
		return nil, err
	}

	event, err := s.inventory.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	// Load shedding only. The FOR UPDATE reserve below is the guard.
	if event.IsFull() {
		return nil, domain.ErrSoldOut
	}

	reserved, err := s.inventory.ReserveTicket(ctx, req.EventID)
	if err != nil {
		observability.ReservationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !reserved {
		// Capacity was lost to a concurrent caller after the pre-check.
		observability.ReservationsTotal.WithLabelValues("sold_out").Inc()
		return nil, domain.ErrSoldOut
	}
	observability.ReservationsTotal.WithLabelValues("reserved").Inc()
	s.invalidateAvailability(ctx, req.EventID)

	confirmation := domain.NewConfirmationNumber()
	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		AmountCents: event.PriceCents,
		Currency:    "eur",
		Description: event.Name,
		SuccessURL:  s.urls.Success,
		CancelURL:   s.urls.Cancel,
		Metadata: map[string]string{
			"event_id":            req.EventID,
			"confirmation_number": confirmation,
			"first_name":          req.Participant.FirstName,
			"last_name":           req.Participant.LastName,
			"email":               req.Participant.Email,
			"phone":               req.Participant.Phone,
			"emergency_name":      req.Emergency.Name,
			"emergency_phone":     req.Emergency.Phone,
		},
	})
	if err != nil {
		// The reserved unit stays consumed. See the abandoned-checkout
		// note above; payment-session failures land in the same window.
		s.logger.WithError(err).WithField("event_id", req.EventID).Error("payment session creation failed")
		return nil, err
	}

	if s.effects.Auditor != nil {
		if auditErr := s.effects.Auditor.LogReservation(ctx, req.EventID, session.ID); auditErr != nil {
			observability.SideEffectFailuresTotal.WithLabelValues("audit").Inc()
		}
	}

	return &CheckoutSession{SessionID: session.ID, RedirectURL: session.RedirectURL}, nil
}

// RegisterWithVoucher runs the voucher flow: validate the code, reserve
// capacity, redeem the code, and write the registration immediately
// with a zero amount. There is no payment step.
func (s *Service) RegisterWithVoucher(ctx context.Context, req VoucherCheckoutRequest) (*VoucherRegistration, error) {
	if err := validateParticipant(req.EventID, req.Participant); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.VoucherCode) == "" {
		return nil, invalidInput("voucher code is required")
	}

	voucher, err := s.vouchers.Get(ctx, req.VoucherCode)
	if err != nil {
		return nil, err
	}
	if !voucher.Redeemable() {
		return nil, domain.ErrAlreadyRedeemed
	}

	availability, err := s.inventory.CheckAvailability(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if availability.SoldOut() {
		return nil, domain.ErrSoldOut
	}

	reserved, err := s.inventory.ReserveTicket(ctx, req.EventID)
	if err != nil {
		observability.ReservationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !reserved {
		observability.ReservationsTotal.WithLabelValues("sold_out").Inc()
		return nil, domain.ErrSoldOut
	}
	observability.ReservationsTotal.WithLabelValues("reserved").Inc()
	s.invalidateAvailability(ctx, req.EventID)

	if err := s.vouchers.Redeem(ctx, req.VoucherCode, req.EventID); err != nil {
		// The reservation is not rolled back; accepted inconsistency,
		// same as an abandoned paid checkout.
		observability.VoucherRedemptionsTotal.WithLabelValues("conflict").Inc()
		return nil, err
	}
	observability.VoucherRedemptionsTotal.WithLabelValues("redeemed").Inc()

	reg := &domain.Registration{
		ConfirmationNumber: domain.NewConfirmationNumber(),
		EventID:            req.EventID,
		SessionID:          "voucher_" + uuid.New().String(),
		Participant:        req.Participant,
		AmountCents:        0,
		CreatedAt:          time.Now().UTC(),
	}
	if _, err := s.registrations.Insert(ctx, reg); err != nil {
		return nil, err
	}

	if s.effects.Auditor != nil {
		if auditErr := s.effects.Auditor.LogRedemption(ctx, voucher, req.EventID); auditErr != nil {
			observability.SideEffectFailuresTotal.WithLabelValues("audit").Inc()
		}
	}
	if s.effects.Publisher != nil {
		if pubErr := s.effects.Publisher.Publish(ctx, "voucher.redeemed", map[string]string{
			"code":     voucher.Code,
			"event_id": req.EventID,
		}); pubErr != nil {
			observability.SideEffectFailuresTotal.WithLabelValues("publish").Inc()
			s.logger.WithError(pubErr).Warn("voucher.redeemed publish failed")
		}
	}
	s.notifyRegistration(ctx, reg)

	return &VoucherRegistration{
		ConfirmationNumber: reg.ConfirmationNumber,
		SessionID:          reg.SessionID,
	}, nil
}

// ValidateVoucherCode is a read-only check. An unknown, cancelled, or
// redeemed code is a plain negative result, not an error.
func (s *Service) ValidateVoucherCode(ctx context.Context, code string) (VoucherValidation, error) {
	if strings.TrimSpace(code) == "" {
		return VoucherValidation{}, nil
	}
	voucher, err := s.vouchers.Get(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return VoucherValidation{}, nil
	}
	if err != nil {
		return VoucherValidation{}, err
	}
	if !voucher.Redeemable() {
		return VoucherValidation{}, nil
	}
	return VoucherValidation{Valid: true, ValueType: voucher.ValueType}, nil
}

// IssueVoucher creates an active code for a gift-voucher order.
func (s *Service) IssueVoucher(ctx context.Context, req IssueVoucherRequest) (string, error) {
	if !isValidEmail(req.PurchaserEmail) {
		return "", invalidInput("purchaser email is not valid")
	}
	if strings.TrimSpace(req.ValueType) == "" {
		return "", invalidInput("value type is required")
	}
	voucher := domain.NewVoucher(req.PurchaserEmail, req.RecipientEmail, req.Message, req.ValueType, req.OrderID)
	if err := s.vouchers.Insert(ctx, voucher); err != nil {
		return "", err
	}
	return voucher.Code, nil
}

// GetVoucher looks up a code, ErrNotFound if absent.
func (s *Service) GetVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	return s.vouchers.Get(ctx, code)
}

// GetRegistration looks up a completed registration by its checkout
// session. It backs the post-payment success page, so a session whose
// callback has not arrived yet reads as ErrNotFound.
func (s *Service) GetRegistration(ctx context.Context, sessionID string) (*domain.Registration, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalidInput("session id is required")
	}
	return s.registrations.GetBySessionID(ctx, sessionID)
}

// ListRegistrations returns every completed registration for an event,
// oldest first.
func (s *Service) ListRegistrations(ctx context.Context, eventID string) ([]domain.Registration, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, invalidInput("event id is required")
	}
	if _, err := s.inventory.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.registrations.ListByEvent(ctx, eventID)
}

func (s *Service) invalidateAvailability(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx, eventID); err != nil {
		s.logger.WithError(err).Debug("availability cache invalidation failed")
	}
}

func validateParticipant(eventID string, p domain.Participant) error {
	if strings.TrimSpace(eventID) == "" {
		return invalidInput("event id is required")
	}
	if strings.TrimSpace(p.FirstName) == "" {
		return invalidInput("first name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return invalidInput("last name is required")
	}
	if !isValidEmail(p.Email) {
		return invalidInput("email is not valid")
	}
	return nil
}

func isValidEmail(email string) bool {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

func invalidInput(msg string) error {
	return errors.Mark(fmt.Errorf("%s", msg), domain.ErrInvalidInput)
}
