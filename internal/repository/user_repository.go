package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// ListAdminInstanceNames returns the instance names bound to active admin users.
func (r *UserRepository) ListAdminInstanceNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT instance_name FROM users WHERE role = $1 AND is_active AND instance_name <> ''",
		entities.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
