package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

func (s *Store) CollectorByCode(ctx context.Context, code string) (*models.Collector, error) {
	var c models.Collector
	err := s.pg.Pool.QueryRow(ctx, `
		SELECT id, code, name, encrypted_secret, active, created_at
		FROM collectors WHERE code = $1
	`, code).Scan(&c.ID, &c.Code, &c.Name, &c.EncryptedSecret, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
