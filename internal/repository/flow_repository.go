package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revenda_bot/internal/entities"
)

type FlowRepository struct {
	db *pgxpool.Pool
}

func NewFlowRepository(db *pgxpool.Pool) *FlowRepository {
	return &FlowRepository{db: db}
}

const flowColumns = "id, tenant_id, name, greeting, is_main_menu, is_active"

func scanFlow(row pgx.Row) (*entities.Flow, error) {
	var f entities.Flow
	err := row.Scan(&f.ID, &f.TenantID, &f.Name, &f.Greeting, &f.IsMainMenu, &f.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// MainFlow returns the tenant's active main-menu flow, if any.
func (r *FlowRepository) MainFlow(ctx context.Context, tenantID string) (*entities.Flow, error) {
	return scanFlow(r.db.QueryRow(ctx,
		"SELECT "+flowColumns+" FROM flows WHERE tenant_id = $1 AND is_main_menu AND is_active ORDER BY id LIMIT 1",
		tenantID))
}

func (r *FlowRepository) FlowByID(ctx context.Context, tenantID string, flowID int64) (*entities.Flow, error) {
	return scanFlow(r.db.QueryRow(ctx,
		"SELECT "+flowColumns+" FROM flows WHERE tenant_id = $1 AND id = $2",
		tenantID, flowID))
}

// Nodes returns every node of a flow, active or not; the tree drops inactive ones.
func (r *FlowRepository) Nodes(ctx context.Context, flowID int64) ([]entities.FlowNode, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, flow_id, parent_node_id, option_number, label, response_type, response_content,
		       image_url, template_id, sort_order, is_active
		FROM flow_nodes WHERE flow_id = $1
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("query flow nodes: %w", err)
	}
	defer rows.Close()

	var out []entities.FlowNode
	for rows.Next() {
		var n entities.FlowNode
		var rtype string
		if err := rows.Scan(&n.ID, &n.FlowID, &n.ParentID, &n.OptionNumber, &n.Label, &rtype, &n.Content,
			&n.ImageURL, &n.TemplateID, &n.SortOrder, &n.IsActive); err != nil {
			return nil, err
		}
		n.ResponseType = entities.NodeType(rtype)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *FlowRepository) ActiveSession(ctx context.Context, tenantID, phone string) (*entities.FlowSession, error) {
	var s entities.FlowSession
	err := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, contact_phone, current_flow_id, current_node_id, is_active, awaiting_human, updated_at
		FROM flow_sessions WHERE tenant_id = $1 AND contact_phone = $2 AND is_active
	`, tenantID, phone).Scan(&s.ID, &s.TenantID, &s.ContactPhone, &s.FlowID, &s.CurrentNodeID, &s.IsActive, &s.AwaitingHuman, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flow session: %w", err)
	}
	return &s, nil
}

// SaveSession upserts the single session row of (tenant, phone).
func (r *FlowRepository) SaveSession(ctx context.Context, s *entities.FlowSession) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO flow_sessions (tenant_id, contact_phone, current_flow_id, current_node_id, is_active, awaiting_human, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, contact_phone) DO UPDATE SET
			current_flow_id = EXCLUDED.current_flow_id,
			current_node_id = EXCLUDED.current_node_id,
			is_active = EXCLUDED.is_active,
			awaiting_human = EXCLUDED.awaiting_human,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, s.TenantID, s.ContactPhone, s.FlowID, s.CurrentNodeID, s.IsActive, s.AwaitingHuman, s.UpdatedAt).Scan(&s.ID)
}

func (r *FlowRepository) GetTemplate(ctx context.Context, tenantID string, id int64) (*entities.Template, error) {
	var t entities.Template
	err := r.db.QueryRow(ctx,
		"SELECT id, tenant_id, name, content, image_url FROM templates WHERE tenant_id = $1 AND id = $2",
		tenantID, id).Scan(&t.ID, &t.TenantID, &t.Name, &t.Content, &t.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}
