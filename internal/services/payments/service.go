// Package payments applies manual and collector-reported payments to the
// notice ledger, enforcing non-overpayment and idempotency.
package payments

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/auditlog"
)

const maxExternalRefLen = 100

// Store is the transactional persistence the service writes through.
// RecordPayment is atomic: the ledger delta and the payment row commit
// together or not at all.
type Store interface {
	NoticeByID(ctx context.Context, id string) (*models.Notice, error)
	NoticeByNumber(ctx context.Context, number string) (*models.Notice, error)
	TaxpayerByID(ctx context.Context, id string) (*models.Taxpayer, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	PaymentByExternalTxnID(ctx context.Context, txnID string) (*models.Payment, error)
	PaymentsByNotice(ctx context.Context, noticeID string) ([]models.Payment, error)
	RecordPayment(ctx context.Context, p *models.Payment) (*models.Notice, error)
}

type AuditLog interface {
	Append(ctx context.Context, e auditlog.Entry) error
}

// ProofChecker verifies that a referenced proof document is actually stored.
type ProofChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

type Service struct {
	Store  Store
	Audit  AuditLog
	Proofs ProofChecker

	// MaxExternalAmount is the sanity ceiling for collector-reported amounts.
	MaxExternalAmount decimal.Decimal
}

func NewService(store Store, audit AuditLog, proofs ProofChecker, maxExternal decimal.Decimal) *Service {
	return &Service{Store: store, Audit: audit, Proofs: proofs, MaxExternalAmount: maxExternal}
}

type ManualPaymentInput struct {
	TaxpayerID string
	NoticeID   string
	Amount     string
	Method     string
	ProofURL   *string
	ActorID    int64
}

// ApplyManualPayment records a cashier payment. Either both the payment row
// and the ledger update commit, or neither does.
func (s *Service) ApplyManualPayment(ctx context.Context, in ManualPaymentInput) (*models.Payment, *models.Notice, error) {
	amount, err := parsePositiveAmount(in.Amount)
	if err != nil {
		return nil, nil, err
	}

	switch in.Method {
	case models.MethodCash, models.MethodTransfer, models.MethodCheque:
	default:
		return nil, nil, apperr.Validation("unknown payment method " + in.Method)
	}

	if models.MethodRequiresProof(in.Method) {
		if in.ProofURL == nil || strings.TrimSpace(*in.ProofURL) == "" {
			return nil, nil, apperr.New(apperr.KindValidation, apperr.ReasonProofRequired,
				"a proof document is required for "+in.Method+" payments")
		}
		ok, err := s.Proofs.Exists(ctx, *in.ProofURL)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, apperr.New(apperr.KindValidation, apperr.ReasonProofRequired,
				"referenced proof document is not stored")
		}
	}

	actor, err := s.Store.UserByID(ctx, in.ActorID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, apperr.Auth(apperr.ReasonAccessDenied, "unknown user")
	}

	notice, err := s.Store.NoticeByID(ctx, in.NoticeID)
	if err != nil {
		return nil, nil, err
	}
	if notice == nil {
		return nil, nil, apperr.NotFound("notice not found")
	}
	if in.TaxpayerID != "" && in.TaxpayerID != notice.TaxpayerID {
		return nil, nil, apperr.NotFound("notice not found for taxpayer")
	}

	taxpayer, err := s.Store.TaxpayerByID(ctx, notice.TaxpayerID)
	if err != nil {
		return nil, nil, err
	}
	if taxpayer == nil {
		return nil, nil, apperr.NotFound("taxpayer not found")
	}

	if !actor.CanSee(taxpayer.CommuneID) {
		return nil, nil, apperr.Auth(apperr.ReasonAccessDenied,
			"taxpayer is outside the caller's jurisdiction")
	}

	if notice.Locked {
		return nil, nil, apperr.Conflict(apperr.ReasonNoticeLocked,
			"notice is locked by billing close-out")
	}

	payment := &models.Payment{
		ID:          uuid.NewString(),
		NoticeID:    notice.ID,
		Amount:      amount,
		Method:      in.Method,
		ProofURL:    in.ProofURL,
		PaidAt:      time.Now().UTC(),
		CreatedByID: &in.ActorID,
	}

	updated, err := s.Store.RecordPayment(ctx, payment)
	if err != nil {
		return nil, nil, err
	}

	s.audit(ctx, auditlog.Entry{
		Action:     auditlog.ActionPaymentManualCreated,
		EntityType: "payment",
		EntityID:   payment.ID,
		ActorID:    &in.ActorID,
		After: map[string]any{
			"taxpayer_name": taxpayer.Name,
			"notice_number": notice.Number,
			"amount":        amount.String(),
			"method":        in.Method,
		},
	})

	return payment, updated, nil
}

type ExternalPaymentInput struct {
	NoticeNumber     string
	TaxpayerCode     string
	Amount           string
	ExternalTxnID    string
	PaidAtEpochMilli int64
	Collector        *models.Collector
}

type ExternalResult struct {
	PaymentID string
	Duplicate bool
	Notice    *models.Notice
}

// ApplyExternalPayment records a collector-reported payment. A replayed
// ExternalTxnID is not an error: the prior outcome is returned unchanged,
// which makes at-least-once delivery from the collector safe.
func (s *Service) ApplyExternalPayment(ctx context.Context, in ExternalPaymentInput) (ExternalResult, error) {
	if in.Collector == nil {
		return ExternalResult{}, apperr.Auth(apperr.ReasonCollectorNotFound, "missing collector identity")
	}

	amount, err := parsePositiveAmount(in.Amount)
	if err != nil {
		return ExternalResult{}, err
	}
	if amount.GreaterThan(s.MaxExternalAmount) {
		return ExternalResult{}, apperr.Validation("amount exceeds the accepted maximum")
	}

	refID := strings.TrimSpace(in.ExternalTxnID)
	if refID == "" || len(refID) > maxExternalRefLen {
		return ExternalResult{}, apperr.Validation("referenceId must be 1-100 characters")
	}

	if in.PaidAtEpochMilli <= 0 {
		return ExternalResult{}, apperr.Validation("paidAt must be a positive epoch-millisecond timestamp")
	}
	paidAt := time.UnixMilli(in.PaidAtEpochMilli).UTC()

	// Notice-absent and taxpayer-mismatch collapse into one error so an
	// external caller cannot probe for valid notice numbers.
	notice, err := s.Store.NoticeByNumber(ctx, in.NoticeNumber)
	if err != nil {
		return ExternalResult{}, err
	}
	if notice == nil {
		return ExternalResult{}, mismatchErr()
	}
	taxpayer, err := s.Store.TaxpayerByID(ctx, notice.TaxpayerID)
	if err != nil {
		return ExternalResult{}, err
	}
	if taxpayer == nil || taxpayer.Code != in.TaxpayerCode {
		return ExternalResult{}, mismatchErr()
	}

	if notice.Status == models.NoticePaid {
		return ExternalResult{}, apperr.Conflict(apperr.ReasonAlreadyPaid, "notice is already fully paid")
	}

	prior, err := s.Store.PaymentByExternalTxnID(ctx, refID)
	if err != nil {
		return ExternalResult{}, err
	}
	if prior != nil {
		return ExternalResult{PaymentID: prior.ID, Duplicate: true, Notice: notice}, nil
	}

	payment := &models.Payment{
		ID:            uuid.NewString(),
		NoticeID:      notice.ID,
		CollectorID:   &in.Collector.ID,
		ExternalTxnID: &refID,
		Amount:        amount,
		Method:        in.Collector.Name,
		PaidAt:        paidAt,
	}

	updated, err := s.Store.RecordPayment(ctx, payment)
	if apperr.KindOf(err) == apperr.KindAlreadyProcessed {
		// Lost the insert race against a concurrent replay of the same
		// reference; report the surviving payment as the prior outcome.
		prior, lookupErr := s.Store.PaymentByExternalTxnID(ctx, refID)
		if lookupErr != nil || prior == nil {
			log.Printf("[PAY][EXT][ERR] duplicate ref=%s but prior row not found: %v", refID, lookupErr)
			return ExternalResult{}, err
		}
		return ExternalResult{PaymentID: prior.ID, Duplicate: true, Notice: notice}, nil
	}
	if err != nil {
		return ExternalResult{}, err
	}

	s.audit(ctx, auditlog.Entry{
		Action:     auditlog.ActionPaymentExternalCreated,
		EntityType: "payment",
		EntityID:   payment.ID,
		After: map[string]any{
			"taxpayer_name": taxpayer.Name,
			"notice_number": notice.Number,
			"amount":        amount.String(),
			"collector":     in.Collector.Name,
			"reference_id":  refID,
		},
	})

	return ExternalResult{PaymentID: payment.ID, Notice: updated}, nil
}

// Statement is the collector-facing view of a notice.
type Statement struct {
	Notice   *models.Notice
	Taxpayer *models.Taxpayer
	Payments []models.Payment
}

func (s *Service) NoticeStatement(ctx context.Context, noticeNumber string) (*Statement, error) {
	notice, err := s.Store.NoticeByNumber(ctx, noticeNumber)
	if err != nil {
		return nil, err
	}
	if notice == nil {
		return nil, apperr.NotFound("notice not found")
	}

	taxpayer, err := s.Store.TaxpayerByID(ctx, notice.TaxpayerID)
	if err != nil {
		return nil, err
	}

	pays, err := s.Store.PaymentsByNotice(ctx, notice.ID)
	if err != nil {
		return nil, err
	}

	return &Statement{Notice: notice, Taxpayer: taxpayer, Payments: pays}, nil
}

func (s *Service) audit(ctx context.Context, e auditlog.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Append(ctx, e); err != nil {
		log.Printf("[PAY][AUDIT][ERR] %s %s: %v", e.Action, e.EntityID, err)
	}
}

func mismatchErr() error {
	return apperr.New(apperr.KindNotFound, apperr.ReasonNoticeOrTaxpayer,
		"notice number or taxpayer code does not match")
}

func parsePositiveAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, apperr.Validation("amount is not a valid decimal")
	}
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, apperr.Validation("amount must be positive")
	}
	return amount, nil
}
