package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/ledger"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

const reductionColumns = `
	id, notice_id, taxpayer_id, amount, previous_total, new_total, reason,
	status, created_by_id, reviewed_by_id, reviewed_at, review_note, created_at
`

func scanReduction(row pgx.Row) (*models.NoticeReduction, error) {
	var r models.NoticeReduction
	err := row.Scan(
		&r.ID, &r.NoticeID, &r.TaxpayerID, &r.Amount,
		&r.PreviousTotal, &r.NewTotal, &r.Reason,
		&r.Status, &r.CreatedByID, &r.ReviewedByID, &r.ReviewedAt,
		&r.ReviewNote, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ReductionByID(ctx context.Context, id string) (*models.NoticeReduction, error) {
	return scanReduction(s.pg.Pool.QueryRow(ctx,
		`SELECT `+reductionColumns+` FROM notice_reductions WHERE id = $1::uuid`, id))
}

// InsertReduction stores a PENDING request. The notice itself is untouched.
func (s *Store) InsertReduction(ctx context.Context, r *models.NoticeReduction) error {
	_, err := s.pg.Pool.Exec(ctx, `
		INSERT INTO notice_reductions (
			id, notice_id, taxpayer_id, amount, previous_total, new_total,
			reason, status, created_by_id, created_at
		)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::numeric, $5::numeric, $6::numeric,
		        $7, $8, $9, NOW())
	`, r.ID, r.NoticeID, r.TaxpayerID, r.Amount, r.PreviousTotal, r.NewTotal,
		r.Reason, r.Status, r.CreatedByID)
	return err
}

// ApplyApproved inserts a reduction row directly in APPROVED state and
// applies the total delta in the same transaction. Used for self-applied
// reductions by requesters with no supervisor.
func (s *Store) ApplyApproved(ctx context.Context, r *models.NoticeReduction) (*models.Notice, error) {
	var updated *models.Notice

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		n, err := lockNotice(ctx, tx, r.NoticeID)
		if err != nil {
			return err
		}
		if n == nil {
			return apperr.NotFound("notice not found")
		}

		st, err := ledger.ApplyTotalDelta(n.TotalAmount, n.AmountPaid, r.Amount)
		if err != nil {
			return err
		}

		r.PreviousTotal = n.TotalAmount
		r.NewTotal = st.TotalAmount

		if _, err := tx.Exec(ctx, `
			INSERT INTO notice_reductions (
				id, notice_id, taxpayer_id, amount, previous_total, new_total,
				reason, status, created_by_id, reviewed_by_id, reviewed_at,
				review_note, created_at
			)
			VALUES ($1::uuid, $2::uuid, $3::uuid, $4::numeric, $5::numeric,
			        $6::numeric, $7, $8, $9, $10, $11, $12, NOW())
		`, r.ID, r.NoticeID, r.TaxpayerID, r.Amount, r.PreviousTotal, r.NewTotal,
			r.Reason, r.Status, r.CreatedByID, r.ReviewedByID, r.ReviewedAt,
			r.ReviewNote,
		); err != nil {
			return err
		}

		if err := writeNoticeState(ctx, tx, n.ID, st); err != nil {
			return err
		}

		n.TotalAmount = st.TotalAmount
		n.AmountPaid = st.AmountPaid
		n.Status = st.Status
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApproveReduction transitions a PENDING reduction to APPROVED against the
// notice's current state, recomputing previous/new totals under the row
// lock. A ledger conflict aborts the transaction and leaves the row PENDING.
// The status guard on the UPDATE makes the transition single-use: a row
// already decided reports AlreadyProcessed.
func (s *Store) ApproveReduction(ctx context.Context, r *models.NoticeReduction, reviewerID int64, note *string, at time.Time) (*models.Notice, error) {
	var updated *models.Notice

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		n, err := lockNotice(ctx, tx, r.NoticeID)
		if err != nil {
			return err
		}
		if n == nil {
			return apperr.NotFound("notice not found")
		}

		st, err := ledger.ApplyTotalDelta(n.TotalAmount, n.AmountPaid, r.Amount)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE notice_reductions
			SET status = $2, previous_total = $3::numeric, new_total = $4::numeric,
			    reviewed_by_id = $5, reviewed_at = $6, review_note = $7
			WHERE id = $1::uuid AND status = $8
		`, r.ID, models.ReductionApproved, n.TotalAmount, st.TotalAmount,
			reviewerID, at, note, models.ReductionPending)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.New(apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed,
				"reduction already reviewed")
		}

		if err := writeNoticeState(ctx, tx, n.ID, st); err != nil {
			return err
		}

		n.TotalAmount = st.TotalAmount
		n.AmountPaid = st.AmountPaid
		n.Status = st.Status
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkRejected closes a PENDING reduction without touching the notice.
func (s *Store) MarkRejected(ctx context.Context, id string, reviewerID int64, note *string, at time.Time) error {
	tag, err := s.pg.Pool.Exec(ctx, `
		UPDATE notice_reductions
		SET status = $2, reviewed_by_id = $3, reviewed_at = $4, review_note = $5
		WHERE id = $1::uuid AND status = $6
	`, id, models.ReductionRejected, reviewerID, at, note, models.ReductionPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindAlreadyProcessed, apperr.ReasonReductionProcessed,
			"reduction already reviewed")
	}
	return nil
}

// PendingForReviewer lists PENDING reductions requested by the reviewer's
// direct reports.
func (s *Store) PendingForReviewer(ctx context.Context, reviewerID int64) ([]models.NoticeReduction, error) {
	rows, err := s.pg.Pool.Query(ctx, `
		SELECT `+reductionColumns+`
		FROM notice_reductions
		WHERE status = $1
		  AND created_by_id IN (SELECT id FROM users WHERE supervisor_id = $2)
		ORDER BY created_at
	`, models.ReductionPending, reviewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NoticeReduction
	for rows.Next() {
		var r models.NoticeReduction
		if err := rows.Scan(
			&r.ID, &r.NoticeID, &r.TaxpayerID, &r.Amount,
			&r.PreviousTotal, &r.NewTotal, &r.Reason,
			&r.Status, &r.CreatedByID, &r.ReviewedByID, &r.ReviewedAt,
			&r.ReviewNote, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
