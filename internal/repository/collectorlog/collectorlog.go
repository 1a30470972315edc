// Package collectorlog records every inbound external-API call, one document
// per call regardless of outcome. The log is written outside any ledger
// transaction so that authentication failures and rejected payments are
// visible for forensic replay and abuse detection.
package collectorlog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mg "github.com/jamilsaadou/naneye-sub000/internal/config/connections/mongo"
)

const Collection = "collector_api_logs"

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusIgnored = "IGNORED"
)

type Entry struct {
	CollectorID     string    `bson:"collector_id" json:"collector_id"`
	NoticeNumber    string    `bson:"notice_number" json:"notice_number"`
	RequestTxnID    string    `bson:"request_txn_id" json:"request_txn_id"`
	JwtTxnID        string    `bson:"jwt_txn_id" json:"jwt_txn_id"`
	JwtIssuer       string    `bson:"jwt_issuer" json:"jwt_issuer"`
	Status          string    `bson:"status" json:"status"`
	Message         string    `bson:"message" json:"message"`
	RequestPayload  string    `bson:"request_payload" json:"request_payload"`
	ResponsePayload string    `bson:"response_payload" json:"response_payload"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
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
		{Key: "collector_id", Value: e.CollectorID},
		{Key: "notice_number", Value: e.NoticeNumber},
		{Key: "request_txn_id", Value: e.RequestTxnID},
		{Key: "jwt_txn_id", Value: e.JwtTxnID},
		{Key: "jwt_issuer", Value: e.JwtIssuer},
		{Key: "status", Value: e.Status},
		{Key: "message", Value: e.Message},
		{Key: "request_payload", Value: e.RequestPayload},
		{Key: "response_payload", Value: e.ResponsePayload},
		{Key: "created_at", Value: e.CreatedAt},
	}

	_, err := w.MG.Database.Collection(Collection).InsertOne(ctx, doc)
	return err
}

// ByCollector returns the most recent calls for one collector, newest first.
func (w *Writer) ByCollector(ctx context.Context, collectorID string, limit int64) ([]Entry, error) {
	if w.MG == nil || w.MG.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := w.MG.Database.Collection(Collection).Find(ctx,
		bson.M{"collector_id": collectorID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Entry
	for cur.Next(ctx) {
		var e Entry
		if err := cur.Decode(&e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, cur.Err()
}
