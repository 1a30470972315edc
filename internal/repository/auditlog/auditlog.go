// Package auditlog appends ledger mutation records to Mongo. The sink only
// observes committed state; it never participates in the Postgres
// transaction, so a failed append is logged and dropped rather than rolling
// back the mutation it describes.
package auditlog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mg "github.com/jamilsaadou/naneye-sub000/internal/config/connections/mongo"
)

const Collection = "audit_logs"

const (
	ActionPaymentManualCreated   = "PAYMENT_MANUAL_CREATED"
	ActionPaymentExternalCreated = "PAYMENT_EXTERNAL_CREATED"
	ActionReductionRequested     = "NOTICE_REDUCTION_REQUESTED"
	ActionReductionApplied       = "NOTICE_REDUCTION_APPLIED"
	ActionReductionApproved      = "NOTICE_REDUCTION_APPROVED"
	ActionReductionRejected      = "NOTICE_REDUCTION_REJECTED"
)

type Entry struct {
	Action     string    `bson:"action" json:"action"`
	EntityType string    `bson:"entity_type" json:"entity_type"`
	EntityID   string    `bson:"entity_id" json:"entity_id"`
	ActorID    *int64    `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	Before     any       `bson:"before,omitempty" json:"before,omitempty"`
	After      any       `bson:"after" json:"after"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

type Writer struct {
	MG *mg.Mongo
}

func NewWriter(m *mg.Mongo) *Writer {
	return &Writer{MG: m}
}

func (w *Writer) Append(ctx context.Context, e Entry) error {
	if w.MG == nil || w.MG.Database == nil {
		return mongo.ErrClientDisconnected
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	doc := bson.D{
		{Key: "action", Value: e.Action},
		{Key: "entity_type", Value: e.EntityType},
		{Key: "entity_id", Value: e.EntityID},
		{Key: "actor_id", Value: e.ActorID},
		{Key: "before", Value: e.Before},
		{Key: "after", Value: e.After},
		{Key: "created_at", Value: e.CreatedAt},
	}

	_, err := w.MG.Database.Collection(Collection).InsertOne(ctx, doc)
	return err
}
