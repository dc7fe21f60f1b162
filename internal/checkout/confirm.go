package checkout

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"eventcheckout/internal/adapters/payment"
	"eventcheckout/internal/domain"
	"eventcheckout/internal/observability"
)

// HandlePaymentCallback finalizes a paid checkout from a gateway
// notification. The signature is verified before anything in the body
// is trusted. The registration write is idempotent on session id, so a
// redelivered callback is acknowledged without a second row or a second
// round of side effects. A nil return means the caller must ack the
// gateway; a non-nil return lets the gateway redeliver.
func (s *Service) HandlePaymentCallback(ctx context.Context, rawBody []byte, signature string) error {
	event, err := s.gateway.VerifyCallback(rawBody, signature)
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		return err
	}

	if event.Type != payment.EventPaymentCaptured {
		observability.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	reg, err := registrationFromCallback(event)
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("invalid_payload").Inc()
		return err
	}

	inserted, err := s.registrations.Insert(ctx, reg)
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("error").Inc()
		return err
	}
	if !inserted {
		observability.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		s.logger.WithField("session_id", reg.SessionID).Info("duplicate payment callback, registration already recorded")
		return nil
	}
	observability.WebhookEventsTotal.WithLabelValues("recorded").Inc()

	s.notifyRegistration(ctx, reg)
	return nil
}

func registrationFromCallback(event *payment.CallbackEvent) (*domain.Registration, error) {
	meta := event.Session.Metadata
	if event.Session.ID == "" || meta["event_id"] == "" {
		return nil, invalidInput("callback session is missing registration metadata")
	}
	confirmation := meta["confirmation_number"]
	if confirmation == "" {
		confirmation = domain.NewConfirmationNumber()
	}
	return &domain.Registration{
		ConfirmationNumber: confirmation,
		EventID:            meta["event_id"],
		SessionID:          event.Session.ID,
		Participant: domain.Participant{
			FirstName: meta["first_name"],
			LastName:  meta["last_name"],
			Email:     meta["email"],
			Phone:     meta["phone"],
		},
		Emergency: domain.EmergencyContact{
			Name:  meta["emergency_name"],
			Phone: meta["emergency_phone"],
		},
		AmountCents: event.Session.AmountCents,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// notifyRegistration dispatches the best-effort side effects of a newly
// recorded registration. Each effect is isolated: a failure is counted
// and logged, and never prevents the others from running or turns the
// durable registration into a failed response.
func (s *Service) notifyRegistration(ctx context.Context, reg *domain.Registration) {
	g, gctx := errgroup.WithContext(ctx)

	if s.effects.Mailer != nil && reg.Participant.Email != "" {
		g.Go(func() error {
			subject := fmt.Sprintf("Registration confirmed: %s", reg.ConfirmationNumber)
			body := confirmationEmailBody(reg)
			if err := s.effects.Mailer.Send(gctx, reg.Participant.Email, subject, body); err != nil {
				observability.SideEffectFailuresTotal.WithLabelValues("email").Inc()
				s.logger.WithError(err).WithField("session_id", reg.SessionID).Warn("confirmation email failed")
			}
			return nil
		})
	}

	if s.effects.Contacts != nil && reg.Participant.Email != "" {
		g.Go(func() error {
			attrs := map[string]string{
				"first_name": reg.Participant.FirstName,
				"last_name":  reg.Participant.LastName,
				"event_id":   reg.EventID,
			}
			if err := s.effects.Contacts.UpsertContact(gctx, reg.Participant.Email, attrs); err != nil {
				observability.SideEffectFailuresTotal.WithLabelValues("list_sync").Inc()
				s.logger.WithError(err).WithField("session_id", reg.SessionID).Warn("contact list sync failed")
			}
			return nil
		})
	}

	if s.effects.Publisher != nil {
		g.Go(func() error {
			payload := map[string]interface{}{
				"confirmation_number": reg.ConfirmationNumber,
				"event_id":            reg.EventID,
				"session_id":          reg.SessionID,
				"amount_cents":        reg.AmountCents,
			}
			if err := s.effects.Publisher.Publish(gctx, "registration.completed", payload); err != nil {
				observability.SideEffectFailuresTotal.WithLabelValues("publish").Inc()
				s.logger.WithError(err).WithField("session_id", reg.SessionID).Warn("registration.completed publish failed")
			}
			return nil
		})
	}

	if s.effects.Auditor != nil {
		g.Go(func() error {
			if err := s.effects.Auditor.LogRegistration(gctx, reg); err != nil {
				observability.SideEffectFailuresTotal.WithLabelValues("audit").Inc()
			}
			return nil
		})
	}

	// Closures always return nil; Wait only synchronizes.
	_ = g.Wait()
}

func confirmationEmailBody(reg *domain.Registration) string {
	return fmt.Sprintf(
		"<p>Hi %s,</p><p>Your registration is confirmed.</p><p>Confirmation number: <strong>%s</strong></p>",
		reg.Participant.FirstName, reg.ConfirmationNumber,
	)
}
