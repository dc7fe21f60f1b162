package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"eventcheckout/internal/domain"
	"eventcheckout/internal/observability"
)

// AuditLogger writes a best-effort trail of capacity and voucher
// mutations. Failures are logged and never affect the request.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditRecord struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	EventID   string    `bson:"event_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) log(ctx context.Context, action, eventID string, data map[string]interface{}) error {
	rec := AuditRecord{
		ID:        uuid.New(),
		Action:    action,
		EventID:   eventID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, rec)
	if err != nil {
		a.logger.WithError(err).WithField("action", action).Error("audit insert failed")
		return err
	}
	return nil
}

func (a *AuditLogger) LogReservation(ctx context.Context, eventID, sessionID string) error {
	return a.log(ctx, "ticket.reserved", eventID, map[string]interface{}{
		"session_id": sessionID,
	})
}

func (a *AuditLogger) LogRedemption(ctx context.Context, v *domain.Voucher, eventID string) error {
	return a.log(ctx, "voucher.redeemed", eventID, map[string]interface{}{
		"code":       v.Code,
		"value_type": v.ValueType,
	})
}

func (a *AuditLogger) LogRegistration(ctx context.Context, reg *domain.Registration) error {
	return a.log(ctx, "registration.recorded", reg.EventID, map[string]interface{}{
		"confirmation_number": reg.ConfirmationNumber,
		"session_id":          reg.SessionID,
		"amount_cents":        reg.AmountCents,
	})
}
