package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jamilsaadou/naneye-sub000/internal/models"
)

func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pg.Pool.QueryRow(ctx, `
		SELECT id, name, role, supervisor_id, commune_id
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Role, &u.SupervisorID, &u.CommuneID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
