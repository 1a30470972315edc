// Package reductions implements the reduction approval workflow: a request
// either waits for the requester's direct supervisor or, for top-level
// requesters, applies immediately. The total owed never drops below zero or
// below what has already been paid.
package reductions

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/ledger"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
	"github.com/jamilsaadou/naneye-sub000/internal/repository/auditlog"
)

type Store interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	TaxpayerByCode(ctx context.Context, code string) (*models.Taxpayer, error)
	NoticeByNumber(ctx context.Context, number string) (*models.Notice, error)
	ReductionByID(ctx context.Context, id string) (*models.NoticeReduction, error)
	InsertReduction(ctx context.Context, r *models.NoticeReduction) error
	ApplyApproved(ctx context.Context, r *models.NoticeReduction) (*models.Notice, error)
	ApproveReduction(ctx context.Context, r *models.NoticeReduction, reviewerID int64, note *string, at time.Time) (*models.Notice, error)
	MarkRejected(ctx context.Context, id string, reviewerID int64, note *string, at time.Time) error
	PendingForReviewer(ctx context.Context, reviewerID int64) ([]models.NoticeReduction, error)
}

type AuditLog interface {
	Append(ctx context.Context, e auditlog.Entry) error
}

type Service struct {
	Store Store
	Audit AuditLog
}

func NewService(store Store, audit AuditLog) *Service {
	return &Service{Store: store, Audit: audit}
}

type RequestInput struct {
	TaxpayerCode string
	NoticeNumber string
	Amount       string
	Reason       string
	RequesterID  int64
}

// Request creates a reduction. Requesters with a supervisor get a PENDING
// row and the notice is untouched; requesters without one (top-level
// administrators) apply the reduction immediately in the same transaction
// as the APPROVED row.
func (s *Service) Request(ctx context.Context, in RequestInput) (*models.NoticeReduction, *models.Notice, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		return nil, nil, apperr.Validation("amount is not a valid decimal")
	}
	if amount.Sign() <= 0 {
		return nil, nil, apperr.Validation("amount must be positive")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, nil, apperr.Validation("a reason is required")
	}

	requester, err := s.Store.UserByID(ctx, in.RequesterID)
	if err != nil {
		return nil, nil, err
	}
	if requester == nil {
		return nil, nil, apperr.Auth(apperr.ReasonAccessDenied, "unknown user")
	}
	// A non-admin with no assigned supervisor has no one authorized to
	// apply reductions on their behalf.
	if !requester.IsAdmin() && requester.SupervisorID == nil {
		return nil, nil, apperr.Auth(apperr.ReasonAccessDenied,
			"requester has no supervisor authorized to approve reductions")
	}

	taxpayer, err := s.Store.TaxpayerByCode(ctx, in.TaxpayerCode)
	if err != nil {
		return nil, nil, err
	}
	if taxpayer == nil || !requester.CanSee(taxpayer.CommuneID) {
		return nil, nil, apperr.NotFound("taxpayer not found")
	}

	notice, err := s.Store.NoticeByNumber(ctx, in.NoticeNumber)
	if err != nil {
		return nil, nil, err
	}
	if notice == nil || notice.TaxpayerID != taxpayer.ID {
		return nil, nil, apperr.NotFound("notice not found")
	}
	if notice.Locked {
		return nil, nil, apperr.Conflict(apperr.ReasonNoticeLocked,
			"notice is locked by billing close-out")
	}

	// Pre-validate the floor before any write; the same check runs again
	// under the row lock when the reduction is applied.
	pre, err := ledger.ApplyTotalDelta(notice.TotalAmount, notice.AmountPaid, amount)
	if err != nil {
		return nil, nil, err
	}

	red := &models.NoticeReduction{
		ID:            uuid.NewString(),
		NoticeID:      notice.ID,
		TaxpayerID:    taxpayer.ID,
		Amount:        amount,
		PreviousTotal: notice.TotalAmount,
		NewTotal:      pre.TotalAmount,
		Reason:        in.Reason,
		CreatedByID:   in.RequesterID,
	}

	if requester.SupervisorID == nil {
		now := time.Now().UTC()
		red.Status = models.ReductionApproved
		red.ReviewedByID = &in.RequesterID
		red.ReviewedAt = &now

		updated, err := s.Store.ApplyApproved(ctx, red)
		if err != nil {
			return nil, nil, err
		}

		s.audit(ctx, auditlog.Entry{
			Action:     auditlog.ActionReductionApplied,
			EntityType: "notice_reduction",
			EntityID:   red.ID,
			ActorID:    &in.RequesterID,
			After:      reductionPayload(red, notice.Number),
		})
		return red, updated, nil
	}

	red.Status = models.ReductionPending
	if err := s.Store.InsertReduction(ctx, red); err != nil {
		return nil, nil, err
	}

	s.audit(ctx, auditlog.Entry{
		Action:     auditlog.ActionReductionRequested,
		EntityType: "notice_reduction",
		EntityID:   red.ID,
		ActorID:    &in.RequesterID,
		After:      reductionPayload(red, notice.Number),
	})
	return red, nil, nil
}

// Approve applies a PENDING reduction against the notice's current state.
// When payments or other reductions have landed since the request and the
// floor no longer holds, the decision fails StaleState and the row stays
// PENDING for a fresh decision.
func (s *Service) Approve(ctx context.Context, reductionID string, reviewerID int64, note *string) (*models.Notice, error) {
	red, err := s.loadPending(ctx, reductionID, reviewerID)
	if err != nil {
		return nil, err
	}

	updated, err := s.Store.ApproveReduction(ctx, red, reviewerID, note, time.Now().UTC())
	if err != nil {
		switch apperr.ReasonOf(err) {
		case apperr.ReasonReductionTooLarge, apperr.ReasonBelowPaidAmount:
			return nil, apperr.Conflict(apperr.ReasonStaleState,
				"notice state changed since the request; reduction left pending")
		}
		return nil, err
	}

	s.audit(ctx, auditlog.Entry{
		Action:     auditlog.ActionReductionApproved,
		EntityType: "notice_reduction",
		EntityID:   red.ID,
		ActorID:    &reviewerID,
		After:      reductionPayload(red, updated.Number),
	})
	return updated, nil
}

// Reject closes a PENDING reduction without touching the notice.
func (s *Service) Reject(ctx context.Context, reductionID string, reviewerID int64, note *string) error {
	red, err := s.loadPending(ctx, reductionID, reviewerID)
	if err != nil {
		return err
	}

	if err := s.Store.MarkRejected(ctx, red.ID, reviewerID, note, time.Now().UTC()); err != nil {
		return err
	}

	s.audit(ctx, auditlog.Entry{
		Action:     auditlog.ActionReductionRejected,
		EntityType: "notice_reduction",
		EntityID:   red.ID,
		ActorID:    &reviewerID,
		After:      map[string]any{"status": models.ReductionRejected},
	})
	return nil
}

// PendingForReviewer lists the reviewer's approval inbox: PENDING requests
// from their direct reports.
func (s *Service) PendingForReviewer(ctx context.Context, reviewerID int64) ([]models.NoticeReduction, error) {
	return s.Store.PendingForReviewer(ctx, reviewerID)
}

// loadPending resolves the reduction and enforces approval authority:
// only the requester's direct supervisor may decide, not any other
// ancestor in the hierarchy.
func (s *Service) loadPending(ctx context.Context, reductionID string, reviewerID int64) (*models.NoticeReduction, error) {
	red, err := s.Store.ReductionByID(ctx, reductionID)
	if err != nil {
		return nil, err
	}
	if red == nil {
		return nil, apperr.NotFound("reduction not found")
	}
	if red.Status != models.ReductionPending {
		return nil, apperr.New(apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed,
			"reduction already reviewed")
	}

	requester, err := s.Store.UserByID(ctx, red.CreatedByID)
	if err != nil {
		return nil, err
	}
	if requester == nil || requester.SupervisorID == nil || *requester.SupervisorID != reviewerID {
		return nil, apperr.Auth(apperr.ReasonAccessDenied,
			"only the requester's direct supervisor may review this reduction")
	}

	return red, nil
}

func (s *Service) audit(ctx context.Context, e auditlog.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Append(ctx, e); err != nil {
		log.Printf("[RED][AUDIT][ERR] %s %s: %v", e.Action, e.EntityID, err)
	}
}

func reductionPayload(r *models.NoticeReduction, noticeNumber string) map[string]any {
	return map[string]any{
		"notice_number":  noticeNumber,
		"amount":         r.Amount.String(),
		"previous_total": r.PreviousTotal.String(),
		"new_total":      r.NewTotal.String(),
		"status":         r.Status,
		"reason":         r.Reason,
	}
}
