package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

type RuleRepository struct {
	db *pgxpool.Pool
}

func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

// TenantKeywords returns the seller's active exact-match keywords.
func (r *RuleRepository) TenantKeywords(ctx context.Context, tenantID string) ([]entities.Keyword, error) {
	if tenantID == "" {
		return nil, nil
	}
	return activeKeywords(ctx, r.db, tenantID)
}

// ActiveRules returns the tenant's active rules, highest priority first.
func (r *RuleRepository) ActiveRules(ctx context.Context, tenantID string) ([]entities.Rule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, trigger_text, is_global_trigger, contact_filter, cooldown_mode, cooldown_hours,
		       response_type, response_content, priority, is_active
		FROM rules
		WHERE tenant_id = $1 AND is_active
		ORDER BY priority DESC, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []entities.Rule
	for rows.Next() {
		var (
			rule        entities.Rule
			mode, rtype string
			content     []byte
		)
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.TriggerText, &rule.IsGlobalTrigger, &rule.ContactFilter,
			&mode, &rule.CooldownHours, &rtype, &content, &rule.Priority, &rule.IsActive); err != nil {
			return nil, err
		}
		rule.CooldownMode = entities.CooldownMode(mode)
		rule.ResponseType = entities.ResponseType(rtype)
		rule.ResponseContent = json.RawMessage(content)
		out = append(out, rule)
	}
	return out, rows.Err()
}
