package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, kind, name, instance_name, original_instance_name, connection_state,
	blocked, blocked_reason, plan_status, silent_mode, fallback_message, updated_at`

func scanTenant(row pgx.Row) (*entities.Tenant, error) {
	var t entities.Tenant
	var kind string
	err := row.Scan(&t.ID, &kind, &t.Name, &t.InstanceName, &t.OriginalInstanceName, &t.ConnectionState,
		&t.Blocked, &t.BlockedReason, &t.PlanStatus, &t.SilentMode, &t.FallbackMessage, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = entities.TenantKind(kind)
	return &t, nil
}

// FindByInstanceName matches instance_name case-insensitively.
func (r *TenantRepository) FindByInstanceName(ctx context.Context, instance string) (*entities.Tenant, error) {
	t, err := scanTenant(r.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE LOWER(instance_name) = LOWER($1) AND instance_name <> '' LIMIT 1",
		instance))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) ListSellers(ctx context.Context) ([]entities.Tenant, error) {
	rows, err := r.db.Query(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE kind = $1 ORDER BY id", entities.TenantSeller)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	defer rows.Close()

	var out []entities.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TenantRepository) UpdateConnectionState(ctx context.Context, tenantID, state string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE tenants SET connection_state = $2, updated_at = NOW() WHERE id = $1",
		tenantID, state)
	return err
}

func (r *TenantRepository) Block(ctx context.Context, tenantID, reason string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE tenants SET blocked = TRUE, blocked_reason = $2, updated_at = NOW() WHERE id = $1",
		tenantID, reason)
	return err
}
