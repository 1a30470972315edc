package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/ledger"
	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

const noticeColumns = `
	id, number, taxpayer_id, year, total_amount, amount_paid, status, locked,
	created_at, updated_at
`

func scanNotice(row pgx.Row) (*models.Notice, error) {
	var n models.Notice
	err := row.Scan(
		&n.ID, &n.Number, &n.TaxpayerID, &n.Year,
		&n.TotalAmount, &n.AmountPaid, &n.Status, &n.Locked,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) NoticeByID(ctx context.Context, id string) (*models.Notice, error) {
	return scanNotice(s.pg.Pool.QueryRow(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE id = $1::uuid`, id))
}

func (s *Store) NoticeByNumber(ctx context.Context, number string) (*models.Notice, error) {
	return scanNotice(s.pg.Pool.QueryRow(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE number = $1`, number))
}

// lockNotice reads the notice inside tx holding a row lock until commit.
func lockNotice(ctx context.Context, tx pgx.Tx, id string) (*models.Notice, error) {
	return scanNotice(tx.QueryRow(ctx,
		`SELECT `+noticeColumns+` FROM notices WHERE id = $1::uuid FOR UPDATE`, id))
}

// writeNoticeState persists the post-state computed by the ledger arithmetic.
// Must be called with the row lock held by lockNotice.
func writeNoticeState(ctx context.Context, tx pgx.Tx, id string, st ledger.State) error {
	_, err := tx.Exec(ctx, `
		UPDATE notices
		SET total_amount = $2::numeric,
		    amount_paid  = $3::numeric,
		    status       = $4,
		    updated_at   = NOW()
		WHERE id = $1::uuid
	`, id, st.TotalAmount, st.AmountPaid, st.Status)
	return err
}
