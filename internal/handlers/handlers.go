package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/mongo"
	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/postgres"
	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/s3"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/collectorlog"
	"github.com/jamilsaadou/naneye-sub000/internal/services/payments"
	"github.com/jamilsaadou/naneye-sub000/internal/services/reductions"
)

type PaymentService interface {
	ApplyManualPayment(ctx context.Context, in payments.ManualPaymentInput) (*models.Payment, *models.Notice, error)
	ApplyExternalPayment(ctx context.Context, in payments.ExternalPaymentInput) (payments.ExternalResult, error)
	NoticeStatement(ctx context.Context, noticeNumber string) (*payments.Statement, error)
}

type ReductionService interface {
	Request(ctx context.Context, in reductions.RequestInput) (*models.NoticeReduction, *models.Notice, error)
	Approve(ctx context.Context, reductionID string, reviewerID int64, note *string) (*models.Notice, error)
	Reject(ctx context.Context, reductionID string, reviewerID int64, note *string) error
	PendingForReviewer(ctx context.Context, reviewerID int64) ([]models.NoticeReduction, error)
}

type ProofStore interface {
	Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	ViewLink(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

type CallLog interface {
	Append(ctx context.Context, e collectorlog.Entry) error
	ByCollector(ctx context.Context, collectorID string, limit int64) ([]collectorlog.Entry, error)
}

type Handlers struct {
	Postgres *postgres.Postgres
	Mongo    *mongo.Mongo
	S3       *s3.S3

	Payments   PaymentService
	Reductions ReductionService
	Proofs     ProofStore
	Calls      CallLog

	Logger *log.Logger
}

func New(pg *postgres.Postgres, mg *mongo.Mongo, s3c *s3.S3, pay PaymentService, red ReductionService, proofs ProofStore, calls CallLog) *Handlers {
	return &Handlers{
		Postgres:   pg,
		Mongo:      mg,
		S3:         s3c,
		Payments:   pay,
		Reductions: red,
		Proofs:     proofs,
		Calls:      calls,
		Logger:     log.Default(),
	}
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the {ok:false, message} shape with the HTTP status implied by
// the error kind.
func (h *Handlers) Error(w http.ResponseWriter, err error) {
	h.JSON(w, statusFor(err), map[string]any{"ok": false, "message": err.Error()})
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindAlreadyProcessed:
		return http.StatusConflict
	case apperr.KindAuth:
		if apperr.ReasonOf(err) == apperr.ReasonAccessDenied {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
