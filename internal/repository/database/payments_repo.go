package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/apperr"
	"github.com/jamilsaadou/naneye-sub000/internal/ledger"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

const paymentColumns = `
	id, notice_id, collector_id, external_txn_id, amount, method, proof_url,
	paid_at, created_by_id, created_at
`

const insertPaymentQuery = `
	INSERT INTO payments (
		id, notice_id, collector_id, external_txn_id,
		amount, method, proof_url, paid_at, created_by_id, created_at
	)
	VALUES (
		$1::uuid, $2::uuid, $3, $4,
		$5::numeric, $6, $7, $8, $9, NOW()
	)
`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.NoticeID, &p.CollectorID, &p.ExternalTxnID,
		&p.Amount, &p.Method, &p.ProofURL,
		&p.PaidAt, &p.CreatedByID, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) PaymentByExternalTxnID(ctx context.Context, txnID string) (*models.Payment, error) {
	return scanPayment(s.pg.Pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE external_txn_id = $1`, txnID))
}

func (s *Store) PaymentsByNotice(ctx context.Context, noticeID string) ([]models.Payment, error) {
	rows, err := s.pg.Pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE notice_id = $1::uuid ORDER BY paid_at`, noticeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(
			&p.ID, &p.NoticeID, &p.CollectorID, &p.ExternalTxnID,
			&p.Amount, &p.Method, &p.ProofURL,
			&p.PaidAt, &p.CreatedByID, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordPayment applies the payment delta and inserts the payment row in one
// transaction. The notice row stays locked from the read through the write,
// so a concurrent payment against the same notice waits here and then sees
// the committed state; the overpayment check is therefore race-free. A
// duplicate external_txn_id surfaces as an AlreadyProcessed error via the
// unique index, which is the idempotency backstop for concurrent replays.
func (s *Store) RecordPayment(ctx context.Context, p *models.Payment) (*models.Notice, error) {
	var updated *models.Notice

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		n, err := lockNotice(ctx, tx, p.NoticeID)
		if err != nil {
			return err
		}
		if n == nil {
			return apperr.NotFound("notice not found")
		}

		st, err := ledger.ApplyPaymentDelta(n.TotalAmount, n.AmountPaid, p.Amount)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, insertPaymentQuery,
			p.ID, p.NoticeID, p.CollectorID, p.ExternalTxnID,
			p.Amount, p.Method, p.ProofURL, p.PaidAt, p.CreatedByID,
		); err != nil {
			if isUniqueViolation(err, "payments_external_txn_id_key") {
				return apperr.Wrap(apperr.KindAlreadyProcessed, apperr.ReasonDuplicateTxn,
					"external transaction already recorded", err)
			}
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
