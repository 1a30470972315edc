package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

const taxpayerColumns = `id, code, name, phone, address, commune_id, created_at`

func scanTaxpayer(row pgx.Row) (*models.Taxpayer, error) {
	var t models.Taxpayer
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Phone, &t.Address, &t.CommuneID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) TaxpayerByID(ctx context.Context, id string) (*models.Taxpayer, error) {
	return scanTaxpayer(s.pg.Pool.QueryRow(ctx,
		`SELECT `+taxpayerColumns+` FROM taxpayers WHERE id = $1::uuid`, id))
}

func (s *Store) TaxpayerByCode(ctx context.Context, code string) (*models.Taxpayer, error) {
	return scanTaxpayer(s.pg.Pool.QueryRow(ctx,
		`SELECT `+taxpayerColumns+` FROM taxpayers WHERE code = $1`, code))
}
