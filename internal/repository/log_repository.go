package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

// SendLogRepository appends outbound attempts. Rows are never updated.
type SendLogRepository struct {
	db *pgxpool.Pool
}

func NewSendLogRepository(db *pgxpool.Pool) *SendLogRepository {
	return &SendLogRepository{db: db}
}

func (r *SendLogRepository) Insert(ctx context.Context, e entities.SendLogEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO send_logs (trace_id, tenant_id, phone, instance, message_type, success, status_code,
			provider_response, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
	`, e.TraceID, e.TenantID, e.Phone, e.Instance, e.MessageType, e.Success, e.StatusCode,
		e.ProviderBody, e.ErrorMessage, nullTime(e.CreatedAt))
	return err
}

type InteractionLogRepository struct {
	db *pgxpool.Pool
}

func NewInteractionLogRepository(db *pgxpool.Pool) *InteractionLogRepository {
	return &InteractionLogRepository{db: db}
}

func (r *InteractionLogRepository) Insert(ctx context.Context, l entities.InteractionLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO interaction_logs (trace_id, tenant_id, phone, inbound_text, outcome, reason, source, rule_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	`, l.TraceID, l.TenantID, l.Phone, l.Inbound, l.Outcome, l.Reason, l.Source, l.RuleID, nullTime(l.CreatedAt))
	return err
}
