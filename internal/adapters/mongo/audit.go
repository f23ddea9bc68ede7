package mongo

import (
	"context"
	"time"

	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

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

type AuditLog struct {
	ID         string    `bson:"_id"`
	Action     string    `bson:"action"`
	UserID     string    `bson:"user_id"`
	BookingID  string    `bson:"booking_id"`
	OccurredAt time.Time `bson:"occurred_at"`
	RecordedAt time.Time `bson:"recorded_at"`
	Data       bson.M    `bson:"data"`
}

// LogNotification records n once; redelivered notifications overwrite the
// same document.
func (a *AuditLogger) LogNotification(ctx context.Context, n domain.Notification) error {
	log := AuditLog{
		ID:         n.ID.String(),
		Action:     n.Type,
		UserID:     n.UserID.String(),
		BookingID:  n.BookingID.String(),
		OccurredAt: n.OccurredAt,
		RecordedAt: time.Now().UTC(),
		Data: bson.M{
			"event_id":     n.EventID.String(),
			"ticket_count": n.TicketCount,
			"reference":    n.Reference,
			"status":       string(n.Status),
		},
	}
	_, err := a.coll.ReplaceOne(ctx, bson.M{"_id": log.ID}, log, options.Replace().SetUpsert(true))
	if err != nil {
		a.logger.WithError(err).WithField("notification_id", log.ID).Error("failed to insert audit log")
		return err
	}
	return nil
}

// History returns the audit trail of a booking, oldest first.
func (a *AuditLogger) History(ctx context.Context, bookingID string) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"booking_id": bookingID}, options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
